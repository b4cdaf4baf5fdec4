package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/observability"
)

// Event is a notification value pushed to a user or driver channel. Like
// commands, events carry a type tag and a flat data payload.
type Event interface {
	EventType() string
}

// Publisher delivers events to subscribers. Delivery is fire-and-forget:
// nobody listening is not an error.
type Publisher interface {
	Publish(ctx context.Context, channel string, event Event) error
}

// UserChannel names the per-user notification channel.
func UserChannel(userID string) string { return "user." + userID }

// DriverChannel names the per-driver notification channel.
func DriverChannel(driverID string) string { return "driver." + driverID }

// Envelope is the wire form published on a channel.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps an event into its envelope wire form.
func Encode(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.EventType(), err)
	}
	return json.Marshal(Envelope{Type: event.EventType(), Data: data})
}

// RedisPublisher pushes events over Redis pub/sub; the gateway subscribes
// to the user.* and driver.* patterns and forwards to live sessions.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, event Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	observability.EventsPublished.WithLabelValues(event.EventType()).Inc()
	return nil
}
