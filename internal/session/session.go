package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/dale108/jury-selection/internal/audio"
	"github.com/dale108/jury-selection/internal/channel"
	"github.com/dale108/jury-selection/internal/device"
	"github.com/dale108/jury-selection/internal/metrics"
	"github.com/dale108/jury-selection/internal/protocol"
	"github.com/dale108/jury-selection/internal/transcript"
)

// Session states. A session moves strictly forward: once closed it can
// never be restarted; callers create a new session instead.
const (
	StateIdle       = "idle"
	StateConnecting = "connecting"
	StateStreaming  = "streaming"
	StatePaused     = "paused"
	StateStopping   = "stopping"
	StateClosed     = "closed"
)

// FSM events.
const (
	eventStart  = "start"
	eventStream = "stream"
	eventPause  = "pause"
	eventResume = "resume"
	eventStop   = "stop"
	eventClose  = "close"
	eventFail   = "fail"
)

// ErrSessionClosed is returned by control methods after the session
// has closed.
var ErrSessionClosed = errors.New("session is closed")

// Config contains capture session configuration.
type Config struct {
	// AudioURL and TranscriptURL are the websocket endpoints without
	// the session id; the id is appended as the final path segment.
	AudioURL      string
	TranscriptURL string

	// TargetSampleRate is the rate chunks are resampled to before
	// encoding. The ingestion service expects 16 kHz mono.
	TargetSampleRate int

	FlushInterval  time.Duration
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
}

// Stats is a snapshot of session state for monitoring.
type Stats struct {
	ID             string                     `json:"id"`
	State          string                     `json:"state"`
	ElapsedSeconds float64                    `json:"elapsed_seconds"`
	AudioLevel     float64                    `json:"audio_level"`
	NativeRate     int                        `json:"native_rate"`
	Buffer         audio.BufferStats          `json:"buffer"`
	AudioChannel   channel.AudioStats         `json:"audio_channel"`
	Transcript     channel.TranscriptStats    `json:"transcript_channel"`
	Aggregator     transcript.AggregatorStats `json:"aggregator"`
}

// ctrlOp is a control request handled on the run loop goroutine.
type ctrlOp struct {
	event string // pause, resume, stop, or flush
	reply chan error
}

// Session is one live capture from device to ingestion service.
type Session struct {
	id      string
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	device device.Device
	stream device.Stream

	buffer     *audio.CaptureBuffer
	aggregator *transcript.Aggregator

	audioCh      *channel.AudioChannel
	transcriptCh *channel.TranscriptChannel

	machine *fsm.FSM

	// Recorded-duration accounting. accumulated holds completed
	// streaming stretches; startedAt marks the current stretch.
	now         func() time.Time
	startedAt   time.Time
	accumulated time.Duration

	level float64

	ctrl    chan ctrlOp
	onError func(error)
	wg      sync.WaitGroup

	mu sync.Mutex
}

// NewSession creates an idle session. dev supplies the audio input;
// m may be nil when metrics are not wanted.
func NewSession(config Config, dev device.Device, logger *slog.Logger, m *metrics.Metrics) (*Session, error) {
	if config.AudioURL == "" {
		return nil, fmt.Errorf("audio URL cannot be empty")
	}
	if config.TranscriptURL == "" {
		return nil, fmt.Errorf("transcript URL cannot be empty")
	}
	if dev == nil {
		return nil, fmt.Errorf("capture device cannot be nil")
	}
	if config.TargetSampleRate <= 0 {
		config.TargetSampleRate = 16000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Second
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.New().String()

	s := &Session{
		id:         id,
		config:     config,
		logger:     logger.With("component", "session", "session_id", id),
		metrics:    m,
		device:     dev,
		buffer:     audio.NewCaptureBuffer(),
		aggregator: transcript.NewAggregator(logger),
		now:        time.Now,
		ctrl:       make(chan ctrlOp),
	}

	s.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateConnecting},
			{Name: eventStream, Src: []string{StateConnecting}, Dst: StateStreaming},
			{Name: eventPause, Src: []string{StateStreaming}, Dst: StatePaused},
			{Name: eventResume, Src: []string{StatePaused}, Dst: StateStreaming},
			{Name: eventStop, Src: []string{StateConnecting, StateStreaming, StatePaused}, Dst: StateStopping},
			{Name: eventClose, Src: []string{StateStopping}, Dst: StateClosed},
			{Name: eventFail, Src: []string{StateConnecting, StateStreaming, StatePaused, StateStopping}, Dst: StateClosed},
		},
		fsm.Callbacks{},
	)

	return s, nil
}

// ID returns the session identifier used in the channel URLs.
func (s *Session) ID() string {
	return s.id
}

// SetOnError registers a callback invoked once if the session fails
// fatally (audio channel error or device loss). Must be called before
// Start.
func (s *Session) SetOnError(fn func(error)) {
	s.onError = fn
}

// Transcript returns the aggregator collecting this session's
// transcript fragments.
func (s *Session) Transcript() *transcript.Aggregator {
	return s.aggregator
}

// Start opens the capture device and both channels, then begins
// streaming. A permission error from the device is returned unchanged
// so callers can distinguish it from connectivity failures. Start
// blocks until the audio channel is connected; the transcript channel
// connects in the background.
func (s *Session) Start(ctx context.Context) error {
	if err := s.transition(eventStart); err != nil {
		return err
	}

	stream, err := s.device.Open(ctx, device.Constraints{Channels: 1})
	if err != nil {
		s.transition(eventFail)
		if errors.Is(err, device.ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("failed to open capture device: %w", err)
	}
	s.stream = stream

	s.logger.Info("Capture device opened",
		slog.Int("native_rate", stream.SampleRate()),
		slog.Int("frame_size", device.FrameSizeFor(stream.SampleRate())),
	)

	audioCh, err := channel.NewAudioChannel(channel.AudioConfig{
		URL:            s.config.AudioURL + "/" + s.id,
		ConnectTimeout: s.config.ConnectTimeout,
	}, s.logger)
	if err != nil {
		stream.Close()
		s.transition(eventFail)
		return err
	}

	transcriptCh, err := channel.NewTranscriptChannel(channel.TranscriptConfig{
		URL:            s.config.TranscriptURL + "/" + s.id,
		ConnectTimeout: s.config.ConnectTimeout,
		ReconnectDelay: s.config.ReconnectDelay,
		OnReconnect: func() {
			if s.metrics != nil {
				s.metrics.RecordTranscriptReconnect()
			}
		},
	}, s.handleFragment, s.transcriptActive, s.logger)
	if err != nil {
		stream.Close()
		s.transition(eventFail)
		return err
	}

	s.audioCh = audioCh
	s.transcriptCh = transcriptCh

	// The transcript channel retries on its own; only the audio
	// channel gates the transition to streaming.
	transcriptCh.Start()

	if err := audioCh.Open(ctx); err != nil {
		transcriptCh.Close()
		stream.Close()
		s.transition(eventFail)
		return fmt.Errorf("failed to open audio channel: %w", err)
	}

	s.mu.Lock()
	s.startedAt = s.now()
	s.mu.Unlock()

	if err := s.transition(eventStream); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordSessionStarted()
	}
	s.logger.Info("Session streaming",
		slog.String("audio_url", s.config.AudioURL),
		slog.String("transcript_url", s.config.TranscriptURL),
	)

	s.wg.Add(1)
	go s.run()

	return nil
}

// run is the session's single processing goroutine. All frame handling,
// flushing, and teardown happens here.
func (s *Session) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	frames := s.stream.Frames()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				s.logger.Error("Capture device stream ended unexpectedly")
				s.shutdown(false, errors.New("capture device stream ended"))
				return
			}
			s.handleFrame(frame)

		case <-ticker.C:
			s.flush()

		case err := <-s.audioCh.Errors():
			s.logger.Error("Audio channel failed", "error", err)
			s.shutdown(false, err)
			return

		case op := <-s.ctrl:
			switch op.event {
			case eventPause:
				op.reply <- s.pauseLocked()
			case eventResume:
				op.reply <- s.resumeLocked()
			case "flush":
				s.flush()
				op.reply <- nil
			case eventStop:
				s.shutdown(true, nil)
				op.reply <- nil
				return
			}
		}
	}
}

// handleFrame buffers one device frame, or drops it while paused.
func (s *Session) handleFrame(frame []float32) {
	if s.State() == StatePaused {
		if s.metrics != nil {
			s.metrics.RecordFrameDiscarded()
		}
		return
	}

	level := audio.Level(frame)
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()

	s.buffer.Append(frame)

	if s.metrics != nil {
		s.metrics.RecordFrameCaptured()
		s.metrics.SetBufferSamples(s.buffer.Len())
		s.metrics.SetAudioLevel(level)
		s.metrics.SetElapsedSeconds(s.ElapsedSeconds())
	}
}

// flush drains the buffer, resamples to the target rate, encodes one
// standalone WAV chunk, and sends it. An empty buffer produces nothing.
func (s *Session) flush() {
	samples := s.buffer.Drain()
	if samples == nil {
		return
	}

	start := time.Now()

	resampled := audio.Resample(samples, s.stream.SampleRate(), s.config.TargetSampleRate)

	chunk, err := audio.EncodeWAV(resampled, s.config.TargetSampleRate)
	if err != nil {
		s.logger.Error("Failed to encode chunk", "error", err, "samples", len(resampled))
		return
	}

	if s.audioCh.State() != channel.AudioOpen {
		if s.metrics != nil {
			s.metrics.RecordChunkDropped()
		}
		return
	}

	if err := s.audioCh.Send(chunk); err != nil {
		// The channel error surfaces on Errors(); nothing more to do here.
		return
	}

	if s.metrics != nil {
		s.metrics.SetBufferSamples(0)
		s.metrics.RecordChunkSent(len(chunk), time.Since(start).Seconds())
	}

	s.logger.Debug("Sent audio chunk",
		slog.Int("samples", len(resampled)),
		slog.Int("bytes", len(chunk)),
	)
}

// pauseLocked runs on the run loop goroutine.
func (s *Session) pauseLocked() error {
	if err := s.transition(eventPause); err != nil {
		return err
	}

	s.mu.Lock()
	s.accumulated += s.now().Sub(s.startedAt)
	s.startedAt = time.Time{}
	s.mu.Unlock()

	s.logger.Info("Session paused", slog.Float64("elapsed_seconds", s.ElapsedSeconds()))
	return nil
}

// resumeLocked runs on the run loop goroutine.
func (s *Session) resumeLocked() error {
	if err := s.transition(eventResume); err != nil {
		return err
	}

	s.mu.Lock()
	s.startedAt = s.now()
	s.mu.Unlock()

	s.logger.Info("Session resumed")
	return nil
}

// shutdown tears the session down in order: stop accepting input,
// flush the remaining buffered audio (graceful stop only), end the
// audio stream, stop the transcript channel, release the device.
func (s *Session) shutdown(graceful bool, cause error) {
	if graceful {
		s.transition(eventStop)
	}

	// Freeze the recorded duration. startedAt is zero while paused,
	// so a paused stretch is never counted twice.
	s.mu.Lock()
	if !s.startedAt.IsZero() {
		s.accumulated += s.now().Sub(s.startedAt)
		s.startedAt = time.Time{}
	}
	s.mu.Unlock()

	if graceful {
		s.flush()
		s.transition(eventClose)
	} else {
		s.transition(eventFail)
	}

	s.audioCh.Close()
	s.transcriptCh.Close()
	s.stream.Close()

	elapsed := s.ElapsedSeconds()
	if s.metrics != nil {
		s.metrics.RecordSessionStopped(elapsed)
		s.metrics.SetElapsedSeconds(elapsed)
	}

	if cause != nil && s.onError != nil {
		s.onError(cause)
	}

	s.logger.Info("Session closed",
		slog.Float64("elapsed_seconds", elapsed),
		slog.Bool("graceful", graceful),
	)
}

// Pause suspends capture. Frames arriving while paused are discarded
// and the recorded duration stops advancing. The channels stay open.
func (s *Session) Pause() error {
	return s.control(eventPause)
}

// Resume continues capture after a pause.
func (s *Session) Resume() error {
	return s.control(eventResume)
}

// Stop gracefully ends the session: remaining buffered audio is
// flushed, the audio channel sends end-of-stream, and both channels
// and the device are released. Stop blocks until teardown completes.
func (s *Session) Stop() error {
	if err := s.control(eventStop); err != nil {
		return err
	}
	s.wg.Wait()
	return nil
}

// Flush forces an immediate drain-encode-send cycle without waiting
// for the ticker.
func (s *Session) Flush() error {
	return s.control("flush")
}

// control dispatches an operation to the run loop and waits for it.
func (s *Session) control(event string) error {
	if s.State() == StateIdle {
		return fmt.Errorf("session has not been started")
	}

	op := ctrlOp{event: event, reply: make(chan error, 1)}

	select {
	case s.ctrl <- op:
		return <-op.reply
	case <-s.done():
		return ErrSessionClosed
	}
}

// done returns a channel that is closed once the run loop exits.
func (s *Session) done() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	return ch
}

// transcriptActive tells the transcript channel whether to keep
// reconnecting: only while the session is still capturing.
func (s *Session) transcriptActive() bool {
	switch s.State() {
	case StateConnecting, StateStreaming, StatePaused:
		return true
	default:
		return false
	}
}

// handleFragment runs on the transcript channel's read goroutine.
func (s *Session) handleFragment(p protocol.TranscriptPayload) {
	accepted := s.aggregator.Add(transcript.Fragment{
		ID:           p.SegmentID,
		SpeakerLabel: p.SpeakerLabel,
		Content:      p.Content,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		Confidence:   p.Confidence,
	})

	if s.metrics != nil {
		if accepted {
			s.metrics.RecordFragmentReceived()
		} else {
			s.metrics.RecordFragmentDuplicate()
		}
	}
}

// transition fires an FSM event, logging rejected transitions.
func (s *Session) transition(event string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.Event(context.Background(), event); err != nil {
		s.logger.Debug("Rejected transition", "event", event, "state", s.machine.Current())
		return fmt.Errorf("invalid transition %q from state %s", event, s.machine.Current())
	}
	return nil
}

// State returns the current session state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Current()
}

// ElapsedSeconds returns the recorded duration: time spent streaming,
// excluding paused stretches and everything after stop.
func (s *Session) ElapsedSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.accumulated
	if s.machine.Current() == StateStreaming && !s.startedAt.IsZero() {
		elapsed += s.now().Sub(s.startedAt)
	}
	return elapsed.Seconds()
}

// GetStats returns a monitoring snapshot.
func (s *Session) GetStats() Stats {
	s.mu.Lock()
	level := s.level
	s.mu.Unlock()

	stats := Stats{
		ID:             s.id,
		State:          s.State(),
		ElapsedSeconds: s.ElapsedSeconds(),
		AudioLevel:     level,
		Buffer:         s.buffer.GetStats(),
		Aggregator:     s.aggregator.GetStats(),
	}
	if s.stream != nil {
		stats.NativeRate = s.stream.SampleRate()
	}
	if s.audioCh != nil {
		stats.AudioChannel = s.audioCh.GetStats()
	}
	if s.transcriptCh != nil {
		stats.Transcript = s.transcriptCh.GetStats()
	}
	return stats
}
