package watch

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mashnoor/llm-ift/internal/engine"
)

const (
	// sendBuffer is per-subscriber; a subscriber that falls this far behind
	// is dropped rather than allowed to stall the pipeline.
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Hub fans engine progress events out to websocket subscribers. It
// implements engine.Emitter; Emit never blocks the pipeline. Each
// subscriber has its own buffered send queue drained by a dedicated writer
// goroutine, and slow or dead connections are dropped instead.
type Hub struct {
	mu       sync.Mutex
	subs     map[*websocket.Conn]chan []byte
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Emit queues one event as a JSON text frame for every subscriber. A full
// send queue means the subscriber cannot keep up; it is dropped on the spot.
func (h *Hub) Emit(ev engine.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.subs {
		select {
		case ch <- data:
		default:
			delete(h.subs, conn)
			close(ch)
			_ = conn.Close()
		}
	}
}

// Handler upgrades an HTTP request to a websocket subscription.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("watch: upgrade failed: %v", err)
			return
		}
		ch := make(chan []byte, sendBuffer)
		h.mu.Lock()
		h.subs[conn] = ch
		h.mu.Unlock()

		// Writer: the only goroutine touching the connection for writes.
		go func() {
			for data := range ch {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					h.drop(conn)
					return
				}
			}
			_ = conn.Close()
		}()

		// Read loop only to observe the close handshake.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.drop(conn)
					return
				}
			}
		}()
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.subs[conn]
	if ok {
		delete(h.subs, conn)
		close(ch)
	}
	h.mu.Unlock()
	_ = conn.Close()
}

// Close drops all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.subs {
		close(ch)
		_ = conn.Close()
	}
	h.subs = make(map[*websocket.Conn]chan []byte)
}
