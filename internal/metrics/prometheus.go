package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the capture service
type Metrics struct {
	// Capture input metrics
	FramesCaptured  prometheus.Counter
	FramesDiscarded prometheus.Counter
	BufferSamples   prometheus.Gauge
	AudioLevel      prometheus.Gauge

	// Chunk streaming metrics
	ChunksSent    prometheus.Counter
	ChunkBytes    prometheus.Counter
	ChunksDropped prometheus.Counter
	ChunkSize     prometheus.Histogram
	FlushDuration prometheus.Histogram

	// Session metrics
	SessionActive   prometheus.Gauge
	SessionsStarted prometheus.Counter
	SessionDuration prometheus.Histogram
	ElapsedSeconds  prometheus.Gauge

	// Transcript metrics
	FragmentsReceived    prometheus.Counter
	FragmentsDuplicate   prometheus.Counter
	TranscriptReconnects prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them on reg. Passing a
// fresh registry keeps tests from colliding on the global default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Capture input metrics
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_frames_captured_total",
			Help: "Total number of device frames appended to the capture buffer",
		}),
		FramesDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_frames_discarded_total",
			Help: "Total number of device frames dropped while the session was paused",
		}),
		BufferSamples: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capture_buffer_samples",
			Help: "Current number of samples waiting in the capture buffer",
		}),
		AudioLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capture_audio_level",
			Help: "RMS level of the most recent captured frame",
		}),

		// Chunk streaming metrics
		ChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_chunks_sent_total",
			Help: "Total number of encoded chunks sent on the audio channel",
		}),
		ChunkBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_chunk_bytes_total",
			Help: "Total encoded bytes sent on the audio channel",
		}),
		ChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_chunks_dropped_total",
			Help: "Total number of chunks dropped because the audio channel was not open",
		}),
		ChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_chunk_size_bytes",
			Help:    "Size of encoded audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_flush_duration_seconds",
			Help:    "Time spent draining, encoding, and sending one chunk",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		}),

		// Session metrics
		SessionActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capture_session_active",
			Help: "Whether a capture session is currently streaming (1) or not (0)",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_sessions_started_total",
			Help: "Total number of capture sessions started",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_session_duration_seconds",
			Help:    "Recorded duration of completed capture sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		ElapsedSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capture_elapsed_seconds",
			Help: "Recorded seconds of the current session, excluding paused time",
		}),

		// Transcript metrics
		FragmentsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_transcript_fragments_received_total",
			Help: "Total number of transcript fragments received",
		}),
		FragmentsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_transcript_fragments_duplicate_total",
			Help: "Total number of duplicate transcript fragments dropped",
		}),
		TranscriptReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_transcript_reconnects_total",
			Help: "Total number of transcript channel reconnect attempts",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "capture_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordFrameCaptured increments the frames captured counter
func (m *Metrics) RecordFrameCaptured() {
	m.FramesCaptured.Inc()
}

// RecordFrameDiscarded increments the frames discarded counter
func (m *Metrics) RecordFrameDiscarded() {
	m.FramesDiscarded.Inc()
}

// SetBufferSamples sets the current buffer depth
func (m *Metrics) SetBufferSamples(samples int) {
	m.BufferSamples.Set(float64(samples))
}

// SetAudioLevel sets the most recent frame level
func (m *Metrics) SetAudioLevel(level float64) {
	m.AudioLevel.Set(level)
}

// RecordChunkSent records one successfully sent chunk
func (m *Metrics) RecordChunkSent(sizeBytes int, flushSeconds float64) {
	m.ChunksSent.Inc()
	m.ChunkBytes.Add(float64(sizeBytes))
	m.ChunkSize.Observe(float64(sizeBytes))
	m.FlushDuration.Observe(flushSeconds)
}

// RecordChunkDropped increments the dropped chunks counter
func (m *Metrics) RecordChunkDropped() {
	m.ChunksDropped.Inc()
}

// RecordSessionStarted marks a session as active
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.SessionActive.Set(1)
}

// RecordSessionStopped marks the session inactive and records duration
func (m *Metrics) RecordSessionStopped(durationSeconds float64) {
	m.SessionActive.Set(0)
	m.SessionDuration.Observe(durationSeconds)
}

// SetElapsedSeconds sets the recorded duration gauge
func (m *Metrics) SetElapsedSeconds(seconds float64) {
	m.ElapsedSeconds.Set(seconds)
}

// RecordFragmentReceived increments the fragments received counter
func (m *Metrics) RecordFragmentReceived() {
	m.FragmentsReceived.Inc()
}

// RecordFragmentDuplicate increments the duplicate fragments counter
func (m *Metrics) RecordFragmentDuplicate() {
	m.FragmentsDuplicate.Inc()
}

// RecordTranscriptReconnect increments the reconnect counter
func (m *Metrics) RecordTranscriptReconnect() {
	m.TranscriptReconnects.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
