package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Subscriber forwards published events to live websocket sessions. It
// pattern-subscribes to the per-user and per-driver channels and relays
// each payload verbatim; clients get the same envelope the handlers
// published.
type Subscriber struct {
	client   *redis.Client
	registry *Registry
	logger   *slog.Logger
}

func NewSubscriber(client *redis.Client, registry *Registry, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{client: client, registry: registry, logger: logger}
}

// Run blocks until ctx is cancelled. go-redis reconnects the pubsub
// connection on its own.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.PSubscribe(ctx, "user.*", "driver.*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			s.forward(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (s *Subscriber) forward(channel string, payload []byte) {
	var body json.RawMessage
	if err := json.Unmarshal(payload, &body); err != nil {
		s.logger.Warn("dropping malformed event payload", "channel", channel, "error", err)
		return
	}

	var err error
	switch {
	case strings.HasPrefix(channel, "user."):
		err = s.registry.SendToUser(strings.TrimPrefix(channel, "user."), body)
	case strings.HasPrefix(channel, "driver."):
		err = s.registry.SendToDriver(strings.TrimPrefix(channel, "driver."), body)
	default:
		return
	}
	if err != nil && !errors.Is(err, ErrNoSession) {
		s.logger.Warn("event push failed", "channel", channel, "error", err)
	}
}
