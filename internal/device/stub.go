package device

import (
	"context"
	"math"
	"sync"
	"time"
)

// StubDevice is a deterministic capture source for tests and local
// development. With a positive Interval it self-clocks, emitting one
// sine-wave frame per tick; with Interval zero the returned stream is
// driven manually through Push.
type StubDevice struct {
	Rate           int           // native sample rate; 0 defaults to 48000
	FrameSize      int           // 0 derives from the rate
	Interval       time.Duration // 0 = manual push mode
	Tone           float64       // generator frequency in Hz; 0 defaults to 440
	DenyPermission bool          // Open fails with ErrPermissionDenied
}

// StubStream implements Stream for the stub device
type StubStream struct {
	rate   int
	frames chan []float32

	ticker *time.Ticker
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Open validates the scripted permission outcome and starts the stream
func (d *StubDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if d.DenyPermission {
		return nil, ErrPermissionDenied
	}

	rate := d.Rate
	if rate == 0 {
		rate = 48000
	}

	frameSize := c.FrameSize
	if frameSize == 0 {
		frameSize = d.FrameSize
	}
	if frameSize == 0 {
		frameSize = FrameSizeFor(rate)
	}

	s := &StubStream{
		rate:   rate,
		frames: make(chan []float32, 64),
		done:   make(chan struct{}),
	}

	if d.Interval > 0 {
		tone := d.Tone
		if tone == 0 {
			tone = 440
		}
		s.ticker = time.NewTicker(d.Interval)
		go s.generate(ctx, frameSize, tone)
	}

	return s, nil
}

// generate emits one sine frame per tick until the stream or context ends
func (s *StubStream) generate(ctx context.Context, frameSize int, tone float64) {
	var phase float64
	step := 2 * math.Pi * tone / float64(s.rate)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			frame := make([]float32, frameSize)
			for i := range frame {
				frame[i] = float32(0.5 * math.Sin(phase))
				phase += step
			}
			s.Push(frame)
		}
	}
}

// Push delivers one frame to the consumer. Frames pushed after Close are
// silently dropped. Blocks if the consumer falls more than the channel
// buffer behind.
func (s *StubStream) Push(frame []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.frames <- frame
}

// Frames returns the frame delivery channel; it is closed by Close
func (s *StubStream) Frames() <-chan []float32 {
	return s.frames
}

// SampleRate returns the device-reported native rate
func (s *StubStream) SampleRate() int {
	return s.rate
}

// Close releases the stub capture stream
func (s *StubStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	close(s.done)
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.frames)

	return nil
}
