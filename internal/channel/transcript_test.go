package channel

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dale108/jury-selection/internal/protocol"
)

// newTranscriptServer runs a loopback transcript endpoint that sends the
// given messages to each connecting client, then closes the connection.
func newTranscriptServer(t *testing.T, connCount *atomic.Int32, messages ...string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if connCount != nil {
			connCount.Add(1)
		}

		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}

		// Hold the connection open briefly so the client reads
		// everything before the server-side close.
		time.Sleep(100 * time.Millisecond)
	}))
}

func transcriptMessage(id string, start float64) string {
	return fmt.Sprintf(`{"type":"transcript","data":{"segment_id":%q,"speaker_label":"speaker_0","content":"hello","start_time":%f,"end_time":%f,"confidence":0.9}}`, id, start, start+1)
}

func TestTranscriptChannelDeliversFragments(t *testing.T) {
	server := newTranscriptServer(t, nil,
		transcriptMessage("seg-1", 0.0),
		transcriptMessage("seg-2", 1.0),
	)
	defer server.Close()

	var mu sync.Mutex
	var got []protocol.TranscriptPayload

	ch, err := NewTranscriptChannel(TranscriptConfig{
		URL:            wsURL(server),
		ReconnectDelay: 50 * time.Millisecond,
	}, func(p protocol.TranscriptPayload) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewTranscriptChannel failed: %v", err)
	}

	ch.Start()
	defer ch.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected 2 fragments, got %d", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].SegmentID != "seg-1" || got[1].SegmentID != "seg-2" {
		t.Errorf("Unexpected fragments: %+v", got)
	}
	if got[0].SpeakerLabel != "speaker_0" {
		t.Errorf("Expected speaker_0, got %q", got[0].SpeakerLabel)
	}
}

func TestTranscriptChannelReconnectsAfterDisconnect(t *testing.T) {
	var connCount atomic.Int32
	server := newTranscriptServer(t, &connCount, transcriptMessage("seg-1", 0.0))
	defer server.Close()

	ch, err := NewTranscriptChannel(TranscriptConfig{
		URL:            wsURL(server),
		ReconnectDelay: 50 * time.Millisecond,
	}, func(protocol.TranscriptPayload) {}, nil, nil)
	if err != nil {
		t.Fatalf("NewTranscriptChannel failed: %v", err)
	}

	ch.Start()
	defer ch.Close()

	deadline := time.Now().Add(3 * time.Second)
	for connCount.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected at least 2 connections, got %d", connCount.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if ch.GetStats().Reconnects == 0 {
		t.Error("Expected reconnect counter to advance")
	}
}

func TestTranscriptChannelStopsWhenPredicateFalse(t *testing.T) {
	var connCount atomic.Int32
	server := newTranscriptServer(t, &connCount)
	defer server.Close()

	ch, err := NewTranscriptChannel(TranscriptConfig{
		URL:            wsURL(server),
		ReconnectDelay: 10 * time.Millisecond,
	}, func(protocol.TranscriptPayload) {}, func() bool { return false }, nil)
	if err != nil {
		t.Fatalf("NewTranscriptChannel failed: %v", err)
	}

	ch.Start()
	defer ch.Close()

	// One connection happens, then the predicate blocks the retry.
	time.Sleep(500 * time.Millisecond)

	if n := connCount.Load(); n != 1 {
		t.Errorf("Expected exactly 1 connection, got %d", n)
	}
}

func TestTranscriptChannelAnswersPing(t *testing.T) {
	pongs := make(chan []byte, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		pongs <- data
	}))
	defer server.Close()

	ch, err := NewTranscriptChannel(TranscriptConfig{
		URL:            wsURL(server),
		ReconnectDelay: time.Second,
	}, func(protocol.TranscriptPayload) {}, func() bool { return false }, nil)
	if err != nil {
		t.Fatalf("NewTranscriptChannel failed: %v", err)
	}

	ch.Start()
	defer ch.Close()

	select {
	case data := <-pongs:
		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			t.Fatalf("Invalid pong: %v", err)
		}
		if env.Type != protocol.TypePong {
			t.Errorf("Expected pong, got %q", env.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Server never received a pong")
	}
}

func TestTranscriptChannelCloseStopsReconnecting(t *testing.T) {
	var connCount atomic.Int32
	server := newTranscriptServer(t, &connCount)
	defer server.Close()

	ch, err := NewTranscriptChannel(TranscriptConfig{
		URL:            wsURL(server),
		ReconnectDelay: 20 * time.Millisecond,
	}, func(protocol.TranscriptPayload) {}, nil, nil)
	if err != nil {
		t.Fatalf("NewTranscriptChannel failed: %v", err)
	}

	ch.Start()
	time.Sleep(100 * time.Millisecond)

	if err := ch.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}

	settled := connCount.Load()
	time.Sleep(200 * time.Millisecond)

	if connCount.Load() != settled {
		t.Error("Channel kept reconnecting after Close")
	}
}
