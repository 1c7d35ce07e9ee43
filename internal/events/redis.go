// Package events announces finished deduplication runs to downstream listeners.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelDedupCompleted is the default pub/sub channel.
const ChannelDedupCompleted = "DEDUP_COMPLETED"

// RunCompleted is the payload published after every run.
type RunCompleted struct {
	Type             string    `json:"type"`
	RunID            string    `json:"runId"`
	Scope            string    `json:"scope"`
	TotalJobs        int       `json:"totalJobsProcessed"`
	DuplicatesFound  int       `json:"duplicatesFound"`
	CanonicalJobs    int       `json:"canonicalJobsIdentified"`
	SucceededBatches []int     `json:"succeededBatches"`
	FailedBatches    []int     `json:"failedBatches"`
	FinishedAt       time.Time `json:"finishedAt"`
}

// Publisher delivers run notifications.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, ev RunCompleted) error
}

// RedisPublisher publishes JSON events on a Redis channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher publishes on channel, or ChannelDedupCompleted when empty.
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = ChannelDedupCompleted
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) PublishRunCompleted(ctx context.Context, ev RunCompleted) error {
	if ev.Type == "" {
		ev.Type = ChannelDedupCompleted
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", p.channel, err)
	}
	return nil
}

// Nop discards events.
type Nop struct{}

func (Nop) PublishRunCompleted(context.Context, RunCompleted) error { return nil }
