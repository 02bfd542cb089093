package server

import (
	"encoding/json"
	"testing"
	"time"
)

func TestWSBroadcastEventShape(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastStepChanged("s1", "answering", 1, 60)

	select {
	case msg := <-ch:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload["type"] != "step_changed" {
			t.Fatalf("expected event type step_changed, got %#v", payload["type"])
		}
		if payload["version"] == nil {
			t.Fatalf("expected version field in payload: %s", string(msg))
		}
		if payload["timestamp"] == nil {
			t.Fatalf("expected timestamp field in payload: %s", string(msg))
		}
		if payload["remaining"] != float64(60) {
			t.Fatalf("expected remaining 60, got %#v", payload["remaining"])
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for websocket broadcast")
	}
}

func TestHubSlowClientDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub()

	// Never drained, so its buffer fills.
	slow := hub.Subscribe()
	defer hub.Unsubscribe(slow)

	fast := hub.Subscribe()
	defer hub.Unsubscribe(fast)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.BroadcastSessionStarted("s1", "iv-1")
		}
		close(done)
	}()

	received := 0
	timeout := time.After(2 * time.Second)
	for received < 64 {
		select {
		case <-fast:
			received++
		case <-timeout:
			t.Fatalf("broadcast stalled after %d messages", received)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast goroutine never finished")
	}
}
