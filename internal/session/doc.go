// Package session coordinates one live capture: it pulls frames from the
// capture device, batches them, encodes each flush as a standalone WAV
// chunk, and streams the chunks to the ingestion service while collecting
// transcript fragments from the transcription service.
package session
