package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseEnvelopeTranscript(t *testing.T) {
	raw := []byte(`{
		"type": "transcript",
		"data": {
			"segment_id": "a1b2c3",
			"speaker_label": "SPEAKER_01",
			"content": "please state your name for the record",
			"start_time": 12.4,
			"end_time": 15.1,
			"confidence": 0.95
		}
	}`)

	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope failed: %v", err)
	}

	if env.Type != TypeTranscript {
		t.Errorf("Expected type %q, got %q", TypeTranscript, env.Type)
	}

	p, err := env.Transcript()
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}

	if p.SegmentID != "a1b2c3" {
		t.Errorf("Expected segment_id a1b2c3, got %q", p.SegmentID)
	}

	if p.SpeakerLabel != "SPEAKER_01" {
		t.Errorf("Expected speaker SPEAKER_01, got %q", p.SpeakerLabel)
	}

	if p.StartTime != 12.4 || p.EndTime != 15.1 {
		t.Errorf("Expected times 12.4/15.1, got %f/%f", p.StartTime, p.EndTime)
	}

	if p.Confidence != 0.95 {
		t.Errorf("Expected confidence 0.95, got %f", p.Confidence)
	}
}

func TestParseEnvelopeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `this is not json`},
		{"missing type", `{"data": {}}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEnvelope([]byte(tt.raw)); err == nil {
				t.Errorf("Expected error for %q", tt.raw)
			}
		})
	}
}

func TestTranscriptRejectsWrongType(t *testing.T) {
	env := &Envelope{Type: TypePong}

	if _, err := env.Transcript(); err == nil {
		t.Error("Expected error decoding a pong envelope as transcript")
	}
}

func TestTranscriptRequiresSegmentID(t *testing.T) {
	env := &Envelope{
		Type: TypeTranscript,
		Data: json.RawMessage(`{"speaker_label": "SPEAKER_00", "content": "hi"}`),
	}

	if _, err := env.Transcript(); err == nil {
		t.Error("Expected error for transcript payload without segment_id")
	}
}

func TestChunkReceived(t *testing.T) {
	raw := []byte(`{"type": "chunk_received", "data": {"chunk_index": 3, "total_duration": 4.0}}`)

	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope failed: %v", err)
	}

	ack, err := env.ChunkReceived()
	if err != nil {
		t.Fatalf("ChunkReceived failed: %v", err)
	}

	if ack.ChunkIndex != 3 {
		t.Errorf("Expected chunk index 3, got %d", ack.ChunkIndex)
	}

	if ack.TotalDuration != 4.0 {
		t.Errorf("Expected total duration 4.0, got %f", ack.TotalDuration)
	}
}

func TestControlMessages(t *testing.T) {
	env, err := ParseEnvelope(EndMessage())
	if err != nil {
		t.Fatalf("EndMessage does not parse: %v", err)
	}
	if env.Type != TypeEnd {
		t.Errorf("Expected end message type %q, got %q", TypeEnd, env.Type)
	}

	env, err = ParseEnvelope(PongMessage())
	if err != nil {
		t.Fatalf("PongMessage does not parse: %v", err)
	}
	if env.Type != TypePong {
		t.Errorf("Expected pong message type %q, got %q", TypePong, env.Type)
	}
}
