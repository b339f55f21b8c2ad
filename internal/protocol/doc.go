// Package protocol defines the websocket message envelopes exchanged with the
// ingestion and transcription services. Audio travels as raw binary frames;
// everything else is a small JSON envelope keyed by a type field.
package protocol
