package device

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFrameSizeFor(t *testing.T) {
	tests := []struct {
		rate int
		want int
	}{
		{8000, 4096},
		{16000, 4096},
		{32000, 4096},
		{44100, 8192},
		{48000, 8192},
	}

	for _, tt := range tests {
		if got := FrameSizeFor(tt.rate); got != tt.want {
			t.Errorf("FrameSizeFor(%d): expected %d, got %d", tt.rate, tt.want, got)
		}
	}
}

func TestStubDevicePermissionDenied(t *testing.T) {
	dev := &StubDevice{DenyPermission: true}

	_, err := dev.Open(context.Background(), Constraints{})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
}

func TestStubDeviceManualPush(t *testing.T) {
	dev := &StubDevice{Rate: 48000}

	stream, err := dev.Open(context.Background(), Constraints{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()

	if stream.SampleRate() != 48000 {
		t.Errorf("Expected native rate 48000, got %d", stream.SampleRate())
	}

	manual := stream.(*StubStream)
	manual.Push([]float32{0.1, 0.2, 0.3})

	select {
	case frame := <-stream.Frames():
		if len(frame) != 3 {
			t.Errorf("Expected 3-sample frame, got %d", len(frame))
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for pushed frame")
	}
}

func TestStubDeviceGeneratesFrames(t *testing.T) {
	dev := &StubDevice{Rate: 16000, FrameSize: 256, Interval: 5 * time.Millisecond}

	stream, err := dev.Open(context.Background(), Constraints{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()

	select {
	case frame := <-stream.Frames():
		if len(frame) != 256 {
			t.Errorf("Expected 256-sample frame, got %d", len(frame))
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for generated frame")
	}
}

func TestStubStreamCloseEndsFrames(t *testing.T) {
	dev := &StubDevice{Rate: 16000}

	stream, err := dev.Open(context.Background(), Constraints{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Closing twice must be safe
	if err := stream.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}

	if _, ok := <-stream.Frames(); ok {
		t.Error("Expected frames channel to be closed")
	}

	// Pushes after close are dropped, not panics
	stream.(*StubStream).Push([]float32{1})
}
