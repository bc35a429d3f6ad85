package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/kestrel-run/orchestra/internal/adapter/ws"
	"github.com/kestrel-run/orchestra/internal/domain/event"
)

func TestBroadcastWithNoObserversSucceeds(t *testing.T) {
	h := ws.NewHub()
	if err := h.Broadcast(context.Background(), event.Event{Type: event.TypeTaskCompleted}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ConnectionCount() != 0 {
		t.Fatalf("ConnectionCount() = %d, want 0", h.ConnectionCount())
	}
}

func TestHubConnectionLifecycle(t *testing.T) {
	h := ws.NewHub()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/observe"
	conn, _, err := websocket.Dial(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ConnectionCount() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if h.ConnectionCount() != 1 {
		t.Fatalf("ConnectionCount() = %d, want 1 once the client has connected", h.ConnectionCount())
	}

	if err := h.Broadcast(context.Background(), event.Event{Type: event.TypePlanStarted}); err != nil {
		t.Fatalf("unexpected error broadcasting: %v", err)
	}

	readCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, data, err := conn.Read(readCtx)
	if err != nil {
		t.Fatalf("unexpected error reading broadcast: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected a non-empty broadcast payload")
	}
}
