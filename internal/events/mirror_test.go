package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRedisMirrorConnectionFailure(t *testing.T) {
	_, err := NewRedisMirror("127.0.0.1:1", "nexus:events")
	assert.Error(t, err)
}

func TestMirrorPublishesBroadcasts(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	mirror, err := NewRedisMirror(mr.Addr(), "nexus:events")
	require.NoError(t, err)
	defer func() { _ = mirror.Close() }()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = sub.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubsub := sub.Subscribe(ctx, "nexus:events")
	defer func() { _ = pubsub.Close() }()

	// Wait for the subscription before publishing.
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	h := NewHub(zap.NewNop())
	h.SetMirror(mirror)
	h.Broadcast(TaskStarted("task_1", "scan the market"))

	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	assert.Equal(t, TypeTaskStarted, ev.Type)
	assert.Equal(t, "task_1", ev.TaskID)
}
