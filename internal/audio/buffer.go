package audio

import "sync"

// CaptureBuffer accumulates raw sample frames delivered by the capture device
// between flush ticks. The session run loop is the only writer and the only
// drainer; the mutex exists because status and metrics readers inspect the
// counters from other goroutines.
type CaptureBuffer struct {
	frames  [][]float32
	samples int

	// Lifetime statistics, not cleared by Drain
	totalFrames  uint64
	totalSamples uint64

	mu sync.Mutex
}

// BufferStats represents capture buffer statistics for monitoring
type BufferStats struct {
	PendingFrames  int    `json:"pending_frames"`
	PendingSamples int    `json:"pending_samples"`
	TotalFrames    uint64 `json:"total_frames"`
	TotalSamples   uint64 `json:"total_samples"`
}

// NewCaptureBuffer creates an empty capture buffer
func NewCaptureBuffer() *CaptureBuffer {
	return &CaptureBuffer{}
}

// Append adds one device frame to the buffer. The frame is copied so callers
// may reuse their slice, which capture backends commonly do.
func (b *CaptureBuffer) Append(frame []float32) {
	if len(frame) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	owned := make([]float32, len(frame))
	copy(owned, frame)

	b.frames = append(b.frames, owned)
	b.samples += len(owned)
	b.totalFrames++
	b.totalSamples += uint64(len(owned))
}

// Drain concatenates all pending frames into one contiguous slice and clears
// the buffer in the same step. Returns nil when nothing is pending.
func (b *CaptureBuffer) Drain() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.samples == 0 {
		return nil
	}

	out := make([]float32, 0, b.samples)
	for _, frame := range b.frames {
		out = append(out, frame...)
	}

	b.frames = nil
	b.samples = 0

	return out
}

// Len returns the number of samples currently pending
func (b *CaptureBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samples
}

// FrameCount returns the number of frames currently pending
func (b *CaptureBuffer) FrameCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// GetStats returns current buffer statistics
func (b *CaptureBuffer) GetStats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BufferStats{
		PendingFrames:  len(b.frames),
		PendingSamples: b.samples,
		TotalFrames:    b.totalFrames,
		TotalSamples:   b.totalSamples,
	}
}
