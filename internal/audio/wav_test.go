package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	// Generate test audio (440Hz sine wave for 0.1 seconds at 16kHz)
	sampleRate := 16000
	duration := 0.1
	frequency := 440.0

	numSamples := int(float64(sampleRate) * duration)
	samples := make([]float32, numSamples)

	for i := 0; i < numSamples; i++ {
		ts := float64(i) / float64(sampleRate)
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*frequency*ts))
	}

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	expectedSize := 44 + len(samples)*2
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Generated WAV is invalid: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("Failed to get WAV info: %v", err)
	}

	if info.SampleRate != uint32(sampleRate) {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, info.SampleRate)
	}

	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}

	if info.BitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", info.BitsPerSample)
	}

	expectedDuration := float64(numSamples) / float64(sampleRate)
	if math.Abs(info.Duration-expectedDuration) > 0.001 {
		t.Errorf("Expected duration %.3f, got %.3f", expectedDuration, info.Duration)
	}
}

func TestEncodeWAVHeaderBytes(t *testing.T) {
	// One second at 16kHz must produce 44 + 32000 bytes with the exact header fields
	samples := make([]float32, 16000)

	wavData, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(wavData) != 32044 {
		t.Errorf("Expected 32044 bytes, got %d", len(wavData))
	}

	if string(wavData[0:4]) != "RIFF" {
		t.Errorf("Expected RIFF tag, got %q", wavData[0:4])
	}

	if string(wavData[8:12]) != "WAVE" {
		t.Errorf("Expected WAVE tag, got %q", wavData[8:12])
	}

	if channels := binary.LittleEndian.Uint16(wavData[22:24]); channels != 1 {
		t.Errorf("Expected channel count 1, got %d", channels)
	}

	if rate := binary.LittleEndian.Uint32(wavData[24:28]); rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}

	if byteRate := binary.LittleEndian.Uint32(wavData[28:32]); byteRate != 32000 {
		t.Errorf("Expected byte rate 32000, got %d", byteRate)
	}

	if blockAlign := binary.LittleEndian.Uint16(wavData[32:34]); blockAlign != 2 {
		t.Errorf("Expected block align 2, got %d", blockAlign)
	}

	if bits := binary.LittleEndian.Uint16(wavData[34:36]); bits != 16 {
		t.Errorf("Expected bit depth 16, got %d", bits)
	}

	if dataSize := binary.LittleEndian.Uint32(wavData[40:44]); dataSize != 32000 {
		t.Errorf("Expected data size 32000, got %d", dataSize)
	}
}

func TestEncodeWAVSampleConversion(t *testing.T) {
	tests := []struct {
		name  string
		input float32
		want  int16
	}{
		{"zero", 0.0, 0},
		{"full scale positive", 1.0, 32767},
		{"full scale negative", -1.0, -32768},
		{"positive overshoot saturates", 1.5, 32767},
		{"negative overshoot saturates", -2.0, -32768},
		{"half scale positive", 0.5, 16384},
		{"half scale negative", -0.5, -16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wavData, err := EncodeWAV([]float32{tt.input}, 16000)
			if err != nil {
				t.Fatalf("EncodeWAV failed: %v", err)
			}

			got := int16(binary.LittleEndian.Uint16(wavData[44:46]))
			if got != tt.want {
				t.Errorf("Sample %f: expected PCM %d, got %d", tt.input, tt.want, got)
			}
		})
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	samples := []float32{0.0, 0.25, -0.25, 1.0, -1.0}
	sampleRate := 16000

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, decodedRate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decodedRate != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, decodedRate)
	}

	want := []int16{0, 8192, -8192, 32767, -32768}
	if len(decoded) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(decoded))
	}

	for i, w := range want {
		if decoded[i] != w {
			t.Errorf("Sample %d: expected %d, got %d", i, w, decoded[i])
		}
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	_, err := EncodeWAV([]float32{}, 16000)
	if err == nil {
		t.Error("Expected error for empty samples")
	}
}

func TestEncodeWAVInvalidSampleRate(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3}

	_, err := EncodeWAV(samples, 0)
	if err == nil {
		t.Error("Expected error for zero sample rate")
	}

	_, err = EncodeWAV(samples, -16000)
	if err == nil {
		t.Error("Expected error for negative sample rate")
	}
}

func TestValidateWAV(t *testing.T) {
	err := ValidateWAV([]byte{1, 2, 3})
	if err == nil {
		t.Error("Expected error for too short WAV data")
	}

	invalidWAV := make([]byte, 50)
	copy(invalidWAV[0:4], []byte("FAKE"))
	err = ValidateWAV(invalidWAV)
	if err == nil {
		t.Error("Expected error for invalid RIFF header")
	}
}

func TestGetWAVDuration(t *testing.T) {
	sampleRate := 16000
	samples := make([]float32, sampleRate) // 1 second

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	duration, err := GetWAVDuration(wavData)
	if err != nil {
		t.Fatalf("GetWAVDuration failed: %v", err)
	}

	if math.Abs(duration-1.0) > 0.001 {
		t.Errorf("Expected duration 1.000, got %.3f", duration)
	}
}
