package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestHub(t *testing.T) (*Hub, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	hub, err := NewHub("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create hub: %v", err)
	}
	return hub, s
}

func TestNewHub(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	hub, err := NewHub("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewHub failed: %v", err)
	}
	defer hub.Close()

	ctx := context.Background()
	if err := hub.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewHubBadURL(t *testing.T) {
	if _, err := NewHub("not-a-url"); err == nil {
		t.Error("expected error for invalid redis url, got nil")
	}
}

func TestPublishAndSubscribe(t *testing.T) {
	hub, s := setupTestHub(t)
	defer hub.Close()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, stop := hub.Subscribe(ctx, "user-1")
	defer stop()

	// Give the subscriber goroutine time to register
	time.Sleep(50 * time.Millisecond)

	if err := hub.PublishToUser(ctx, "user-1", []byte(`{"title":"Task assigned"}`)); err != nil {
		t.Fatalf("PublishToUser failed: %v", err)
	}

	select {
	case payload := <-events:
		if string(payload) != `{"title":"Task assigned"}` {
			t.Errorf("unexpected payload: %s", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestSubscribeIsolation(t *testing.T) {
	hub, s := setupTestHub(t)
	defer hub.Close()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, stop := hub.Subscribe(ctx, "user-a")
	defer stop()

	time.Sleep(50 * time.Millisecond)

	// Event for a different user must not reach user-a's stream
	if err := hub.PublishToUser(ctx, "user-b", []byte(`{"title":"other"}`)); err != nil {
		t.Fatalf("PublishToUser failed: %v", err)
	}
	if err := hub.PublishToUser(ctx, "user-a", []byte(`{"title":"mine"}`)); err != nil {
		t.Fatalf("PublishToUser failed: %v", err)
	}

	select {
	case payload := <-events:
		if string(payload) != `{"title":"mine"}` {
			t.Errorf("received event for the wrong user: %s", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestPublishWithoutSubscriber(t *testing.T) {
	hub, s := setupTestHub(t)
	defer hub.Close()
	defer s.Close()

	ctx := context.Background()
	if err := hub.PublishToUser(ctx, "nobody-listening", []byte(`{}`)); err != nil {
		t.Errorf("PublishToUser with no subscriber failed: %v", err)
	}
}

func TestSubscribeStopClosesStream(t *testing.T) {
	hub, s := setupTestHub(t)
	defer hub.Close()
	defer s.Close()

	ctx := context.Background()
	events, stop := hub.Subscribe(ctx, "user-1")

	time.Sleep(50 * time.Millisecond)
	stop()

	select {
	case _, open := <-events:
		if open {
			t.Error("expected stream to close after stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream to close")
	}
}
