package protocol

import (
	"encoding/json"
	"fmt"
)

// Message types used on both channels. Audio data itself is sent as binary
// websocket frames and never wrapped in an envelope.
const (
	TypeStart         = "start"          // ingestion ack: recording created
	TypeChunkReceived = "chunk_received" // ingestion ack: one chunk stored
	TypeEnd           = "end"            // graceful end-of-stream control message
	TypeError         = "error"          // server-side failure report
	TypePing          = "ping"
	TypePong          = "pong"
	TypeTranscript    = "transcript" // transcript fragment delivery
)

// Envelope is the outer JSON structure of every text message
type Envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// TranscriptPayload carries one transcript fragment. Times are seconds
// relative to session start; the speaker label is an opaque identifier from
// the diarization service and is passed through unchanged.
type TranscriptPayload struct {
	SegmentID    string  `json:"segment_id"`
	SpeakerLabel string  `json:"speaker_label"`
	Content      string  `json:"content"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	Confidence   float64 `json:"confidence"`
}

// ChunkReceivedPayload is the ingestion service's per-chunk acknowledgement
type ChunkReceivedPayload struct {
	ChunkIndex    int     `json:"chunk_index"`
	TotalDuration float64 `json:"total_duration"`
}

// StartPayload confirms that the ingestion service created a recording
type StartPayload struct {
	RecordingID string `json:"recording_id"`
	SessionID   string `json:"session_id"`
}

// ParseEnvelope decodes one text message into an envelope
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse message envelope: %w", err)
	}

	if env.Type == "" {
		return nil, fmt.Errorf("message envelope missing type field")
	}

	return &env, nil
}

// Transcript decodes the envelope payload as a transcript fragment
func (e *Envelope) Transcript() (*TranscriptPayload, error) {
	if e.Type != TypeTranscript {
		return nil, fmt.Errorf("envelope type is %q, not %q", e.Type, TypeTranscript)
	}

	var p TranscriptPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse transcript payload: %w", err)
	}

	if p.SegmentID == "" {
		return nil, fmt.Errorf("transcript payload missing segment_id")
	}

	return &p, nil
}

// ChunkReceived decodes the envelope payload as a chunk acknowledgement
func (e *Envelope) ChunkReceived() (*ChunkReceivedPayload, error) {
	if e.Type != TypeChunkReceived {
		return nil, fmt.Errorf("envelope type is %q, not %q", e.Type, TypeChunkReceived)
	}

	var p ChunkReceivedPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse chunk ack payload: %w", err)
	}

	return &p, nil
}

// EndMessage returns the control message that signals graceful end-of-stream
func EndMessage() []byte {
	return []byte(`{"type":"end"}`)
}

// PongMessage returns the reply to a server ping
func PongMessage() []byte {
	return []byte(`{"type":"pong"}`)
}
