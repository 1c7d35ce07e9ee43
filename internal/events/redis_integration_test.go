//go:build integration

package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	sub := rdb.Subscribe(ctx, "test-dedup-completed")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisher(rdb, "test-dedup-completed")
	require.NoError(t, p.PublishRunCompleted(ctx, RunCompleted{RunID: "r1", Scope: "user-1", DuplicatesFound: 3}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var ev RunCompleted
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	assert.Equal(t, ChannelDedupCompleted, ev.Type)
	assert.Equal(t, "r1", ev.RunID)
	assert.Equal(t, 3, ev.DuplicatesFound)
}
