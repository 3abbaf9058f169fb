package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"chat-service-backend/internal/events"
)

// RedisPublisher fans envelopes out on the shared chat channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

var _ events.Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: ChatChannel(),
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, envelope events.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("bus publish: marshal envelope: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("bus publish: redis publish: %w", err)
	}
	return nil
}
