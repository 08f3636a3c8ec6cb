package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"contestvote/internal/shared/events"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisBus relays envelopes over Redis pub/sub. Every subscribed process
// receives every event; the consumer group is only used for logging.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisBus(client *redis.Client, logger *slog.Logger) *RedisBus {
	return &RedisBus{client: client, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, event events.Envelope) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.EventID, err)
	}
	if err := b.client.Publish(ctx, topic, raw).Err(); err != nil {
		if b.logger != nil {
			b.logger.Error("redis publish failed",
				"event", "redis_bus_publish_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"event_id", event.EventID,
				"error", err.Error(),
			)
		}
		return err
	}
	return nil
}

func (b *RedisBus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	pubsub := b.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	go func() {
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case message, ok := <-messages:
				if !ok {
					return
				}
				var event events.Envelope
				if err := json.Unmarshal([]byte(message.Payload), &event); err != nil {
					b.logFailure("redis event decode failed", "redis_bus_decode_failed", topic, consumerGroup, "", err)
					continue
				}
				if err := handler(ctx, event); err != nil {
					b.logFailure("consumer handler failed", "redis_bus_consume_failed", topic, consumerGroup, event.EventID, err)
				}
			}
		}
	}()
	return nil
}

func (b *RedisBus) logFailure(message string, event string, topic string, consumerGroup string, eventID string, err error) {
	if b.logger == nil {
		return
	}
	b.logger.Error(message,
		"event", event,
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"consumer_group", consumerGroup,
		"event_id", eventID,
		"error", err.Error(),
	)
}
