package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisMirror republishes the event feed on a Redis pub/sub channel so
// external consumers can follow the stream without holding a WebSocket.
type RedisMirror struct {
	client  *redis.Client
	channel string
	ctx     context.Context
}

func NewRedisMirror(addr, channel string) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisMirror{
		client:  client,
		channel: channel,
		ctx:     ctx,
	}, nil
}

func (m *RedisMirror) Publish(data []byte) error {
	return m.client.Publish(m.ctx, m.channel, data).Err()
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}
