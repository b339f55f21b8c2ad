// Package audio handles sample rate conversion, WAV encoding, and capture buffering.
// It converts device-rate float samples into 16-bit mono PCM chunks ready for
// transmission, and provides an RMS level meter for UI feedback.
package audio
