package bus

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"chat-service-backend/internal/env"
)

// NewClient connects to the redis instance backing the event bus.
func NewClient(ctx context.Context) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     env.Get(env.ChatRedisURL),
		Password: env.Get(env.ChatRedisPass),
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bus: ping redis: %w", err)
	}
	return client, nil
}
