package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dale108/jury-selection/internal/protocol"
)

// AudioState describes the lifecycle of an audio channel.
type AudioState int

const (
	AudioIdle AudioState = iota
	AudioConnecting
	AudioOpen
	AudioClosed
)

func (s AudioState) String() string {
	switch s {
	case AudioIdle:
		return "idle"
	case AudioConnecting:
		return "connecting"
	case AudioOpen:
		return "open"
	case AudioClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// AudioConfig contains audio channel configuration.
type AudioConfig struct {
	URL            string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

// AudioStats holds counters for monitoring.
type AudioStats struct {
	State         string `json:"state"`
	ChunksSent    uint64 `json:"chunks_sent"`
	BytesSent     uint64 `json:"bytes_sent"`
	ChunksDropped uint64 `json:"chunks_dropped"`
}

// AudioChannel is the outbound websocket carrying encoded audio chunks.
// Any transport error after the channel opens is fatal: the channel
// moves to closed, reports the error once on Errors(), and does not
// reconnect. Chunks sent while the channel is not open are dropped
// and counted, never queued.
type AudioChannel struct {
	config AudioConfig
	logger *slog.Logger

	conn *websocket.Conn

	state         AudioState
	chunksSent    uint64
	bytesSent     uint64
	chunksDropped uint64

	errs     chan error
	errOnce  sync.Once
	readDone chan struct{}

	mu sync.Mutex
}

// NewAudioChannel creates an idle audio channel.
func NewAudioChannel(config AudioConfig, logger *slog.Logger) (*AudioChannel, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("audio channel URL cannot be empty")
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AudioChannel{
		config:   config,
		logger:   logger.With("component", "audio_channel"),
		state:    AudioIdle,
		errs:     make(chan error, 1),
		readDone: make(chan struct{}),
	}, nil
}

// Open dials the websocket endpoint. It blocks until the connection is
// established or the connect timeout expires. Open may be called once;
// a failed open leaves the channel closed.
func (c *AudioChannel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != AudioIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("audio channel cannot open from state %s", state)
	}
	c.state = AudioConnecting
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.config.URL, nil)
	if err != nil {
		c.mu.Lock()
		c.state = AudioClosed
		c.mu.Unlock()
		return fmt.Errorf("failed to connect audio channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = AudioOpen
	c.mu.Unlock()

	c.logger.Info("Audio channel connected", "url", c.config.URL)

	go c.readLoop()

	return nil
}

// readLoop consumes server acknowledgements (start, chunk_received,
// pong). A read error while the channel is still open is fatal.
func (c *AudioChannel) readLoop() {
	defer close(c.readDone)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasOpen := c.state == AudioOpen
			c.state = AudioClosed
			c.mu.Unlock()

			if wasOpen {
				c.conn.Close()
				c.fail(fmt.Errorf("audio channel read failed: %w", err))
			}
			return
		}

		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			c.logger.Warn("Ignoring malformed server message", "error", err)
			continue
		}

		switch env.Type {
		case protocol.TypeStart:
			c.logger.Debug("Server acknowledged stream start")
		case protocol.TypeChunkReceived:
			c.logger.Debug("Server acknowledged chunk")
		case protocol.TypePong:
		case protocol.TypeError:
			c.mu.Lock()
			c.state = AudioClosed
			c.mu.Unlock()
			c.conn.Close()
			c.fail(fmt.Errorf("audio channel server error: %s", env.Error))
			return
		default:
			c.logger.Debug("Ignoring server message", "type", env.Type)
		}
	}
}

// Send transmits one encoded chunk as a binary frame. When the channel
// is not open the chunk is dropped and counted; Send never blocks
// waiting for a connection. A write error is fatal for the channel.
func (c *AudioChannel) Send(chunk []byte) error {
	c.mu.Lock()

	if c.state != AudioOpen {
		c.chunksDropped++
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("Dropped audio chunk", "state", state.String(), "bytes", len(chunk))
		return nil
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteMessage(websocket.BinaryMessage, chunk)
	if err != nil {
		c.state = AudioClosed
		c.mu.Unlock()
		c.conn.Close()
		c.fail(fmt.Errorf("audio channel write failed: %w", err))
		return err
	}

	c.chunksSent++
	c.bytesSent += uint64(len(chunk))
	c.mu.Unlock()

	return nil
}

// Close performs a graceful shutdown: it sends the end-of-stream
// control message, closes the connection, and moves to closed.
// Close is idempotent.
func (c *AudioChannel) Close() error {
	c.mu.Lock()

	if c.state == AudioClosed {
		c.mu.Unlock()
		return nil
	}

	conn := c.conn
	wasOpen := c.state == AudioOpen
	c.state = AudioClosed
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	if wasOpen {
		conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, protocol.EndMessage()); err != nil {
			c.logger.Warn("Failed to send end-of-stream message", "error", err)
		}
	}

	err := conn.Close()

	// Wait for the read loop to observe the closed connection.
	<-c.readDone

	c.logger.Info("Audio channel closed")
	return err
}

// fail delivers the first fatal error; later errors are dropped.
func (c *AudioChannel) fail(err error) {
	c.errOnce.Do(func() {
		c.errs <- err
	})
}

// Errors returns a channel delivering at most one fatal channel error.
func (c *AudioChannel) Errors() <-chan error {
	return c.errs
}

// State returns the current channel state.
func (c *AudioChannel) State() AudioState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GetStats returns channel statistics for monitoring.
func (c *AudioChannel) GetStats() AudioStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return AudioStats{
		State:         c.state.String(),
		ChunksSent:    c.chunksSent,
		BytesSent:     c.bytesSent,
		ChunksDropped: c.chunksDropped,
	}
}
