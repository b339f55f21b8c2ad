package device

import (
	"context"
	"errors"
)

// ErrPermissionDenied reports that the user or OS refused microphone access.
// It is distinct from hardware failure so callers can explain remediation
// (grant microphone access) instead of showing a generic capture error.
var ErrPermissionDenied = errors.New("capture device: permission denied")

// Constraints describe the capture the caller wants. The native sample rate
// is device-reported, not requested: it is fixed for the stream's lifetime
// once capture starts.
type Constraints struct {
	Channels  int // 0 defaults to mono
	FrameSize int // samples per delivered frame; 0 derives it from the native rate
}

// Stream is a live capture delivering raw sample frames until closed.
// The Frames channel is closed when the device stops producing.
type Stream interface {
	Frames() <-chan []float32
	SampleRate() int
	Close() error
}

// Device opens capture streams
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// FrameSizeFor returns the per-callback frame size for a native rate. Larger
// buffers are used at higher rates to bound callback frequency.
func FrameSizeFor(sampleRate int) int {
	if sampleRate > 32000 {
		return 8192
	}
	return 4096
}
