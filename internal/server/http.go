package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dale108/jury-selection/internal/config"
	"github.com/dale108/jury-selection/internal/metrics"
	"github.com/dale108/jury-selection/internal/session"
)

// SessionProvider returns the currently running capture session, or
// nil when no capture is in progress.
type SessionProvider func() *session.Session

// HTTPServer provides HTTP API endpoints for monitoring and control
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	current  SessionProvider
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server. current supplies the
// live session for the /session endpoints; gatherer backs /metrics.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, current SessionProvider, m *metrics.Metrics, gatherer prometheus.Gatherer) *HTTPServer {

	if logger == nil {
		logger = slog.Default()
	}

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		current:   current,
		metrics:   m,
		gatherer:  gatherer,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Session monitoring and control endpoints
	mux.HandleFunc("/session", h.withMetrics("/session", h.handleSession))
	mux.HandleFunc("/session/transcript", h.withMetrics("/session/transcript", h.handleTranscript))
	mux.HandleFunc("/session/pause", h.withMetrics("/session/pause", h.handlePause))
	mux.HandleFunc("/session/resume", h.withMetrics("/session/resume", h.handleResume))
	mux.HandleFunc("/session/stop", h.withMetrics("/session/stop", h.handleStop))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	sessionStatus := "none"
	if s := h.current(); s != nil {
		sessionStatus = s.State()
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "capture-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"session": map[string]interface{}{
				"status": sessionStatus,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleSession implements the /session endpoint
func (h *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := h.current()
	if s == nil {
		http.Error(w, "No active session", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.GetStats())
}

// handleTranscript implements the /session/transcript endpoint
func (h *HTTPServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := h.current()
	if s == nil {
		http.Error(w, "No active session", http.StatusNotFound)
		return
	}

	agg := s.Transcript()
	fragments := agg.Snapshot()

	type fragmentView struct {
		ID         string  `json:"id"`
		Speaker    string  `json:"speaker"`
		Content    string  `json:"content"`
		StartTime  float64 `json:"start_time"`
		EndTime    float64 `json:"end_time"`
		Confidence float64 `json:"confidence"`
	}

	views := make([]fragmentView, 0, len(fragments))
	for _, f := range fragments {
		views = append(views, fragmentView{
			ID:         f.ID,
			Speaker:    agg.SpeakerName(f.SpeakerLabel),
			Content:    f.Content,
			StartTime:  f.StartTime,
			EndTime:    f.EndTime,
			Confidence: f.Confidence,
		})
	}

	response := map[string]interface{}{
		"session_id": s.ID(),
		"total":      len(views),
		"timestamp":  time.Now().UTC(),
		"fragments":  views,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handlePause implements the /session/pause endpoint
func (h *HTTPServer) handlePause(w http.ResponseWriter, r *http.Request) {
	h.handleControl(w, r, "pause", func(s *session.Session) error { return s.Pause() })
}

// handleResume implements the /session/resume endpoint
func (h *HTTPServer) handleResume(w http.ResponseWriter, r *http.Request) {
	h.handleControl(w, r, "resume", func(s *session.Session) error { return s.Resume() })
}

// handleStop implements the /session/stop endpoint
func (h *HTTPServer) handleStop(w http.ResponseWriter, r *http.Request) {
	h.handleControl(w, r, "stop", func(s *session.Session) error { return s.Stop() })
}

// handleControl dispatches one session control action
func (h *HTTPServer) handleControl(w http.ResponseWriter, r *http.Request, action string, fn func(*session.Session) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := h.current()
	if s == nil {
		http.Error(w, "No active session", http.StatusNotFound)
		return
	}

	if err := fn(s); err != nil {
		h.logger.Warn("Session control rejected",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"action": action,
		"state":  s.State(),
	})
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sanitizedConfig := map[string]interface{}{
		"capture": map[string]interface{}{
			"target_sample_rate": h.config.Capture.TargetSampleRate,
			"channels":           h.config.Capture.Channels,
			"bit_depth":          h.config.Capture.BitDepth,
			"flush_interval":     h.config.Capture.FlushInterval,
		},
		"channels": map[string]interface{}{
			"audio_url":       h.config.Channels.AudioURL,
			"transcript_url":  h.config.Channels.TranscriptURL,
			"connect_timeout": h.config.Channels.ConnectTimeout,
			"reconnect_delay": h.config.Channels.ReconnectDelay,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Courtroom Capture Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                   "API documentation",
			"GET /health":             "Service health check",
			"GET /session":            "Current capture session status",
			"GET /session/transcript": "Ordered live transcript",
			"POST /session/pause":     "Pause the current session",
			"POST /session/resume":    "Resume the current session",
			"POST /session/stop":      "Stop the current session",
			"GET /config":             "Get service configuration",
			"GET /metrics":            "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
