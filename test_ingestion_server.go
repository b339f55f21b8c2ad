package main

// Standalone development server that stands in for the ingestion and
// transcription backends. Run it, then point configs/config.yaml at
// ws://localhost:8000 and start cmd/capture with -fake-input.
//
//	go run test_ingestion_server.go

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func audioStreamHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/audio/stream/")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Audio upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("Audio stream connected: session=%s", sessionID)

	start := map[string]interface{}{
		"type": "start",
		"data": map[string]string{
			"recording_id": fmt.Sprintf("rec-%d", time.Now().Unix()),
			"session_id":   sessionID,
		},
	}
	if err := conn.WriteJSON(start); err != nil {
		return
	}

	chunkIndex := 0
	var totalBytes int

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Audio stream closed: session=%s chunks=%d bytes=%d", sessionID, chunkIndex, totalBytes)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			totalBytes += len(data)
			log.Printf("Chunk %d: %d bytes", chunkIndex, len(data))

			ack := map[string]interface{}{
				"type": "chunk_received",
				"data": map[string]interface{}{
					"chunk_index":    chunkIndex,
					"total_duration": float64(chunkIndex + 1),
				},
			}
			conn.WriteJSON(ack)
			chunkIndex++

		case websocket.TextMessage:
			var msg map[string]interface{}
			if err := json.Unmarshal(data, &msg); err == nil && msg["type"] == "end" {
				log.Printf("End of stream: session=%s", sessionID)
			}
		}
	}
}

func transcriptHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/transcripts/live/")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Transcript upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("Transcript stream connected: session=%s", sessionID)

	// Emit one synthetic fragment per second until the client leaves.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	segment := 0
	for {
		select {
		case <-done:
			log.Printf("Transcript stream closed: session=%s", sessionID)
			return
		case <-ticker.C:
			fragment := map[string]interface{}{
				"type": "transcript",
				"data": map[string]interface{}{
					"segment_id":    fmt.Sprintf("%s-seg-%d", sessionID, segment),
					"speaker_label": fmt.Sprintf("speaker_%d", segment%2),
					"content":       fmt.Sprintf("synthetic utterance %d", segment),
					"start_time":    float64(segment),
					"end_time":      float64(segment + 1),
					"confidence":    0.95,
				},
			}
			if err := conn.WriteJSON(fragment); err != nil {
				return
			}
			segment++
		}
	}
}

func main() {
	http.HandleFunc("/audio/stream/", audioStreamHandler)
	http.HandleFunc("/transcripts/live/", transcriptHandler)

	addr := ":8000"
	log.Printf("Development ingestion server listening on %s", addr)
	log.Printf("  audio:       ws://localhost%s/audio/stream/{session_id}", addr)
	log.Printf("  transcripts: ws://localhost%s/transcripts/live/{session_id}", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}
