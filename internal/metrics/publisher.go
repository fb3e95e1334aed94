package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"signal-alerts/internal/storage"
)

const keyPrefix = "signalwatcher:last_run:"

// Publisher exposes the latest run counters to external dashboards.
// Publishing is best-effort; failures must never affect the run outcome.
type Publisher interface {
	PublishRun(ctx context.Context, m storage.RunMetrics) error
}

// NopPublisher is used when no dashboard backend is configured.
type NopPublisher struct{}

// PublishRun does nothing.
func (NopPublisher) PublishRun(context.Context, storage.RunMetrics) error { return nil }

// RedisPublisher stores the latest run counters per component in Redis.
type RedisPublisher struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPublisher connects to Redis from a URL; an unreachable server is
// reported as an error so the caller can fall back to the no-op publisher.
func NewRedisPublisher(url string, ttl time.Duration) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisPublisher{client: client, ttl: ttl}, nil
}

// PublishRun writes the run counters as JSON under a per-component key.
func (p *RedisPublisher) PublishRun(ctx context.Context, m storage.RunMetrics) error {
	body, err := json.Marshal(map[string]any{
		"run_id":      m.RunID,
		"component":   m.Component,
		"pending":     m.Pending,
		"sent":        m.Sent,
		"deduped":     m.Deduped,
		"failed":      m.Failed,
		"finished_at": m.FinishedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal run metrics: %w", err)
	}
	return p.client.Set(ctx, keyPrefix+m.Component, body, p.ttl).Err()
}

var _ Publisher = (*RedisPublisher)(nil)
var _ Publisher = NopPublisher{}
