package audio

import "testing"

func TestCaptureBufferAppendAndDrain(t *testing.T) {
	buf := NewCaptureBuffer()

	buf.Append([]float32{0.1, 0.2})
	buf.Append([]float32{0.3})
	buf.Append([]float32{0.4, 0.5, 0.6})

	if buf.Len() != 6 {
		t.Errorf("Expected 6 pending samples, got %d", buf.Len())
	}

	if buf.FrameCount() != 3 {
		t.Errorf("Expected 3 pending frames, got %d", buf.FrameCount())
	}

	out := buf.Drain()

	want := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	if len(out) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(out))
	}

	for i, w := range want {
		if out[i] != w {
			t.Errorf("Sample %d: expected %f, got %f", i, w, out[i])
		}
	}
}

func TestCaptureBufferDrainClearsAtomically(t *testing.T) {
	buf := NewCaptureBuffer()
	buf.Append([]float32{1, 2, 3})

	first := buf.Drain()
	if len(first) != 3 {
		t.Fatalf("Expected 3 samples from first drain, got %d", len(first))
	}

	if buf.Len() != 0 {
		t.Errorf("Expected empty buffer after drain, got %d samples", buf.Len())
	}

	second := buf.Drain()
	if second != nil {
		t.Errorf("Expected nil from draining an empty buffer, got %d samples", len(second))
	}
}

func TestCaptureBufferCopiesFrames(t *testing.T) {
	buf := NewCaptureBuffer()

	frame := []float32{0.5, 0.5}
	buf.Append(frame)

	// Capture backends reuse their delivery buffers; mutations after
	// Append must not leak into the drained audio.
	frame[0] = -1.0

	out := buf.Drain()
	if out[0] != 0.5 {
		t.Errorf("Expected buffer to own a copy, got mutated sample %f", out[0])
	}
}

func TestCaptureBufferIgnoresEmptyFrames(t *testing.T) {
	buf := NewCaptureBuffer()

	buf.Append(nil)
	buf.Append([]float32{})

	if buf.FrameCount() != 0 {
		t.Errorf("Expected empty frames to be ignored, got %d frames", buf.FrameCount())
	}
}

func TestCaptureBufferStats(t *testing.T) {
	buf := NewCaptureBuffer()

	buf.Append([]float32{1, 2})
	buf.Drain()
	buf.Append([]float32{3})

	stats := buf.GetStats()

	if stats.PendingFrames != 1 || stats.PendingSamples != 1 {
		t.Errorf("Expected 1 pending frame with 1 sample, got %d/%d",
			stats.PendingFrames, stats.PendingSamples)
	}

	if stats.TotalFrames != 2 || stats.TotalSamples != 3 {
		t.Errorf("Expected lifetime totals 2 frames / 3 samples, got %d/%d",
			stats.TotalFrames, stats.TotalSamples)
	}
}
