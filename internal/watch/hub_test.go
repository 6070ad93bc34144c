package watch

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mashnoor/llm-ift/internal/engine"
)

func newTestHub(t *testing.T) (*Hub, string) {
	h := NewHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", h.Handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(h.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http") + "/watch"
}

// waitForSubscribers polls until n subscribers are registered; the server
// handler registers a subscription just after the dial handshake returns.
func waitForSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		got := len(h.subs)
		h.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscriber never registered")
}

func TestHubDeliversEvents(t *testing.T) {
	h, url := newTestHub(t)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForSubscribers(t, h, 1)

	h.Emit(engine.Event{Type: "module_recorded", Module: "alu"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"module_recorded"`) {
		t.Fatalf("frame = %s", data)
	}
}

func TestHubEmitNeverBlocksOnStalledSubscriber(t *testing.T) {
	h, url := newTestHub(t)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForSubscribers(t, h, 1)

	// The client never reads. Large payloads defeat OS socket buffering, so
	// the subscriber's send queue fills and the hub must drop it instead of
	// stalling the emitter.
	payload := strings.Repeat("x", 64<<10)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			h.Emit(engine.Event{Type: "module_invoking", Error: payload})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Emit blocked behind a stalled subscriber")
	}
}
