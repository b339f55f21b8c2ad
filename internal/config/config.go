package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete capture service configuration
type Config struct {
	Capture  CaptureConfig  `yaml:"capture"`
	Channels ChannelsConfig `yaml:"channels"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CaptureConfig contains audio capture and encoding parameters
type CaptureConfig struct {
	TargetSampleRate int     `yaml:"target_sample_rate"`
	Channels         int     `yaml:"channels"`
	BitDepth         int     `yaml:"bit_depth"`
	FlushInterval    float64 `yaml:"flush_interval"` // seconds
}

// ChannelsConfig contains websocket channel configuration
type ChannelsConfig struct {
	AudioURL       string  `yaml:"audio_url"`
	TranscriptURL  string  `yaml:"transcript_url"`
	ConnectTimeout float64 `yaml:"connect_timeout"` // seconds
	ReconnectDelay float64 `yaml:"reconnect_delay"` // seconds
}

// HTTPConfig contains the status/metrics server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Channels.Validate(); err != nil {
		return fmt.Errorf("channels config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates capture configuration
func (a *CaptureConfig) Validate() error {
	if a.TargetSampleRate != 16000 {
		return fmt.Errorf("target_sample_rate must be 16000 Hz for the ingestion service, got %d", a.TargetSampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive, got %f", a.FlushInterval)
	}

	return nil
}

// Validate validates channel configuration
func (ch *ChannelsConfig) Validate() error {
	if err := validateWebsocketURL("audio_url", ch.AudioURL); err != nil {
		return err
	}

	if err := validateWebsocketURL("transcript_url", ch.TranscriptURL); err != nil {
		return err
	}

	if ch.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %f", ch.ConnectTimeout)
	}

	if ch.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive, got %f", ch.ReconnectDelay)
	}

	return nil
}

func validateWebsocketURL(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}

	if !strings.HasPrefix(value, "ws://") && !strings.HasPrefix(value, "wss://") {
		return fmt.Errorf("%s must be a ws:// or wss:// URL, got '%s'", field, value)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetFlushInterval returns the flush interval as a time.Duration
func (a *CaptureConfig) GetFlushInterval() time.Duration {
	return time.Duration(a.FlushInterval * float64(time.Second))
}

// GetConnectTimeout returns the connect timeout as a time.Duration
func (ch *ChannelsConfig) GetConnectTimeout() time.Duration {
	return time.Duration(ch.ConnectTimeout * float64(time.Second))
}

// GetReconnectDelay returns the reconnect delay as a time.Duration
func (ch *ChannelsConfig) GetReconnectDelay() time.Duration {
	return time.Duration(ch.ReconnectDelay * float64(time.Second))
}
