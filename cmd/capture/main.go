package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dale108/jury-selection/internal/config"
	"github.com/dale108/jury-selection/internal/device"
	"github.com/dale108/jury-selection/internal/metrics"
	"github.com/dale108/jury-selection/internal/server"
	"github.com/dale108/jury-selection/internal/session"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "capture-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	fakeInput := flag.Bool("fake-input", false, "Capture a generated test tone instead of a real device")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("audio_url", cfg.Channels.AudioURL),
		slog.String("transcript_url", cfg.Channels.TranscriptURL),
		slog.Int("target_sample_rate", cfg.Capture.TargetSampleRate),
		slog.Float64("flush_interval", cfg.Capture.FlushInterval),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics on a dedicated registry
	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(registry)
	logger.Info("Prometheus metrics initialized")

	// Select the capture input. The generated tone self-clocks at the
	// 48 kHz native rate, which exercises the full resample path.
	// TODO: wire a platform capture backend (portaudio or pulse) once
	// one is chosen for the courtroom machines.
	var dev device.Device
	if *fakeInput {
		dev = &device.StubDevice{Rate: 48000, Interval: 100 * time.Millisecond, FrameSize: 4800}
		logger.Info("Using generated test tone input")
	} else {
		logger.Error("No platform capture backend is built in yet, run with -fake-input")
		os.Exit(1)
	}

	// Create the capture session
	capture, err := session.NewSession(session.Config{
		AudioURL:         cfg.Channels.AudioURL,
		TranscriptURL:    cfg.Channels.TranscriptURL,
		TargetSampleRate: cfg.Capture.TargetSampleRate,
		FlushInterval:    cfg.Capture.GetFlushInterval(),
		ConnectTimeout:   cfg.Channels.GetConnectTimeout(),
		ReconnectDelay:   cfg.Channels.GetReconnectDelay(),
	}, dev, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create session", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fatal := make(chan error, 1)
	capture.SetOnError(func(err error) {
		select {
		case fatal <- err:
		default:
		}
	})

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg,
			func() *session.Session { return capture }, appMetrics, registry)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)

		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Start capturing
	if err := capture.Start(ctx); err != nil {
		logger.Error("Failed to start session", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Session started",
		slog.String("session_id", capture.ID()),
	)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-fatal:
		logger.Error("Session failed", slog.String("error", err.Error()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop the session first so the final chunk and end-of-stream
	// message go out before anything else shuts down.
	if err := capture.Stop(); err != nil && err != session.ErrSessionClosed {
		logger.Error("Error stopping session", slog.String("error", err.Error()))
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	stats := capture.GetStats()
	logger.Info("Final session statistics",
		slog.Float64("elapsed_seconds", stats.ElapsedSeconds),
		slog.Uint64("chunks_sent", stats.AudioChannel.ChunksSent),
		slog.Uint64("bytes_sent", stats.AudioChannel.BytesSent),
		slog.Uint64("fragments_received", stats.Transcript.FragmentsReceived),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
