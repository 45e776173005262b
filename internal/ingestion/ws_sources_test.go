package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"perp-indexer/internal/events"
	"perp-indexer/internal/events/eventtest"
	"perp-indexer/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testWSConfig() *WSConfig {
	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond
	cfg.ReadTimeout = 5 * time.Second
	cfg.Subscription = json.RawMessage(`{"subscribe":"events"}`)
	return &cfg
}

func writeEvent(t *testing.T, c *websocket.Conn, e *events.Event) {
	b, err := events.Encode(e)
	if err != nil {
		t.Errorf("encode: %v", err)
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Errorf("write: %v", err)
	}
}

func receive(t *testing.T, ch <-chan *events.Event) *events.Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("channel closed early")
		}
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return nil
}

func TestWSSource_StreamsAndReconnects(t *testing.T) {
	var connections atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		n := connections.Add(1)

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		if string(msg) != `{"subscribe":"events"}` {
			t.Errorf("unexpected subscription frame %s", msg)
		}

		if n == 1 {
			writeEvent(t, c, eventtest.New("A", "0xAA").Log(0, 0).Build())
			c.WriteMessage(websocket.TextMessage, []byte("not json"))
			writeEvent(t, c, eventtest.New("B", "0xaa").Log(0, 1).Build())
			return // drop the connection
		}

		writeEvent(t, c, eventtest.New("C", "0xbb").Log(0, 0).Build())
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	src := NewWSSource(wsURL, testWSConfig(), logging.Discard())

	ch, err := src.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	want := []string{"A", "B", "C"}
	for i, name := range want {
		e := receive(t, ch)
		if e.Name != name {
			t.Errorf("event %d: got %s, want %s", i, e.Name, name)
		}
	}
	if connections.Load() < 2 {
		t.Errorf("expected a reconnect, got %d connections", connections.Load())
	}

	if err := src.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after Close")
	}
}

func TestWSSource_TxHashIsNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		writeEvent(t, c, eventtest.New("A", "0xABC").Build())
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	src := NewWSSource("ws"+strings.TrimPrefix(server.URL, "http"), nil, logging.Discard())
	ch, err := src.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if e := receive(t, ch); e.TxHash != "0xabc" {
		t.Errorf("got tx hash %s", e.TxHash)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after cancel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("source did not close after cancel")
	}
}

func TestWSSource_DialFailure(t *testing.T) {
	src := NewWSSource("ws://127.0.0.1:1/events", nil, logging.Discard())
	if _, err := src.Subscribe(context.Background()); err == nil {
		t.Error("expected dial error")
	}
}

func TestWSSource_SubscribeOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	src := NewWSSource("ws"+strings.TrimPrefix(server.URL, "http"), nil, logging.Discard())
	defer src.Close()

	if _, err := src.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := src.Subscribe(context.Background()); err == nil {
		t.Error("expected error on second Subscribe")
	}
}
