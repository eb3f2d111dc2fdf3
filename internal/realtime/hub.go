// Package realtime delivers notification events to connected clients over
// per-user Redis pub/sub channels.
package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes an event payload to a single user's channel. Delivery is
// best effort: subscribers that are not connected simply miss the event, the
// persisted notification row remains the source of truth.
type Publisher interface {
	PublishToUser(ctx context.Context, userID string, payload []byte) error
}

// Hub is a Redis-backed Publisher with a matching subscribe side for the
// SSE stream handler.
type Hub struct {
	client *redis.Client
	prefix string
}

// NewHub connects to Redis and verifies the connection
func NewHub(redisURL string) (*Hub, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Hub{client: client, prefix: "notify:user:"}, nil
}

// NewHubWithClient creates a hub from an existing Redis client
func NewHubWithClient(client *redis.Client) *Hub {
	return &Hub{client: client, prefix: "notify:user:"}
}

func (h *Hub) channel(userID string) string {
	return h.prefix + userID
}

// PublishToUser sends the payload to the user's channel
func (h *Hub) PublishToUser(ctx context.Context, userID string, payload []byte) error {
	if err := h.client.Publish(ctx, h.channel(userID), payload).Err(); err != nil {
		return fmt.Errorf("publish to user channel: %w", err)
	}
	return nil
}

// Subscribe opens the user's channel and returns a message stream plus a
// cancel func. The stream closes when the context ends or cancel is called.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan []byte, func()) {
	sub := h.client.Subscribe(ctx, h.channel(userID))
	out := make(chan []byte, 16)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel
}

// Close closes the Redis connection
func (h *Hub) Close() error {
	return h.client.Close()
}

// Ping checks if Redis is reachable
func (h *Hub) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}
