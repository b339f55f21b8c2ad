package channel

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dale108/jury-selection/internal/protocol"
)

// TranscriptConfig contains transcript channel configuration.
type TranscriptConfig struct {
	URL            string
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration

	// OnReconnect, when set, is invoked once per reconnect attempt.
	OnReconnect func()
}

// TranscriptStats holds counters for monitoring.
type TranscriptStats struct {
	Connected         bool   `json:"connected"`
	FragmentsReceived uint64 `json:"fragments_received"`
	Reconnects        uint64 `json:"reconnects"`
}

// TranscriptChannel is the inbound websocket carrying transcript
// fragments. Unlike the audio channel its errors are never fatal for
// the session: whenever the connection drops, the channel waits the
// reconnect delay and dials again, for as long as the shouldReconnect
// predicate allows. Fragments missed while disconnected are gone; the
// channel never requests a replay.
type TranscriptChannel struct {
	config          TranscriptConfig
	logger          *slog.Logger
	onFragment      func(protocol.TranscriptPayload)
	shouldReconnect func() bool

	conn      *websocket.Conn
	connected bool

	fragmentsReceived uint64
	reconnects        uint64

	done   chan struct{}
	closed bool
	wg     sync.WaitGroup

	mu sync.Mutex
}

// NewTranscriptChannel creates a transcript channel. onFragment is
// invoked on the channel's read goroutine for every transcript message;
// shouldReconnect is consulted after each disconnect and may be nil,
// meaning always reconnect until Close.
func NewTranscriptChannel(config TranscriptConfig, onFragment func(protocol.TranscriptPayload), shouldReconnect func() bool, logger *slog.Logger) (*TranscriptChannel, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("transcript channel URL cannot be empty")
	}
	if onFragment == nil {
		return nil, fmt.Errorf("fragment handler cannot be nil")
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = time.Second
	}
	if shouldReconnect == nil {
		shouldReconnect = func() bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TranscriptChannel{
		config:          config,
		logger:          logger.With("component", "transcript_channel"),
		onFragment:      onFragment,
		shouldReconnect: shouldReconnect,
		done:            make(chan struct{}),
	}, nil
}

// Start launches the connect/read/reconnect loop. It returns
// immediately; connection failures are retried in the background.
func (c *TranscriptChannel) Start() {
	c.wg.Add(1)
	go c.run()
}

// run dials, reads until the connection drops, then waits the
// reconnect delay and repeats.
func (c *TranscriptChannel) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		dialer := websocket.Dialer{HandshakeTimeout: c.config.ConnectTimeout}
		conn, _, err := dialer.Dial(c.config.URL, nil)
		if err != nil {
			c.logger.Warn("Transcript channel connect failed", "error", err)
		} else {
			c.mu.Lock()
			c.conn = conn
			c.connected = true
			c.mu.Unlock()

			c.logger.Info("Transcript channel connected", "url", c.config.URL)

			c.readLoop(conn)

			c.mu.Lock()
			c.conn = nil
			c.connected = false
			c.mu.Unlock()
		}

		select {
		case <-c.done:
			return
		default:
		}

		if !c.shouldReconnect() {
			c.logger.Info("Transcript channel not reconnecting")
			return
		}

		c.mu.Lock()
		c.reconnects++
		c.mu.Unlock()

		if c.config.OnReconnect != nil {
			c.config.OnReconnect()
		}

		c.logger.Info("Transcript channel reconnecting", "delay", c.config.ReconnectDelay)

		select {
		case <-time.After(c.config.ReconnectDelay):
		case <-c.done:
			return
		}
	}
}

// readLoop reads messages until the connection fails or is closed.
func (c *TranscriptChannel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("Transcript channel read failed", "error", err)
			}
			return
		}

		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			c.logger.Warn("Ignoring malformed transcript message", "error", err)
			continue
		}

		switch env.Type {
		case protocol.TypeTranscript:
			payload, err := env.Transcript()
			if err != nil {
				c.logger.Warn("Ignoring invalid transcript payload", "error", err)
				continue
			}

			c.mu.Lock()
			c.fragmentsReceived++
			c.mu.Unlock()

			c.onFragment(*payload)

		case protocol.TypePing:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, protocol.PongMessage()); err != nil {
				c.logger.Warn("Failed to answer ping", "error", err)
			}

		default:
			c.logger.Debug("Ignoring transcript channel message", "type", env.Type)
		}
	}
}

// Close stops the reconnect loop, closes any live connection, and
// waits for the read goroutine to exit. Close is idempotent.
func (c *TranscriptChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	c.wg.Wait()

	c.logger.Info("Transcript channel closed")
	return nil
}

// Connected reports whether the channel currently holds a live
// connection.
func (c *TranscriptChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// GetStats returns channel statistics for monitoring.
func (c *TranscriptChannel) GetStats() TranscriptStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return TranscriptStats{
		Connected:         c.connected,
		FragmentsReceived: c.fragmentsReceived,
		Reconnects:        c.reconnects,
	}
}
