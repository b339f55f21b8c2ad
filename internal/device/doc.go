// Package device abstracts the audio capture hardware behind a small
// producer interface so the pipeline can be driven by a fake source in tests.
// Real backends deliver frames at whatever native rate the device exposes.
package device
