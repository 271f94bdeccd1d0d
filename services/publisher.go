package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"buildbank/config"
	"buildbank/models"
)

// Publisher announces finished batch runs to downstream consumers.
type Publisher interface {
	PublishRun(ctx context.Context, summary *models.RunSummary) error
	Close() error
}

// RedisPublisher appends each run summary to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(cfg config.RedisConfig) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisPublisher{
		client: client,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
	}
}

// PublishRun adds the summary as a "summary" JSON field, trimming the stream
// to roughly maxLen entries.
func (p *RedisPublisher) PublishRun(ctx context.Context, summary *models.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: runValues(summary, payload),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish run %s: %w", summary.ID, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func runValues(summary *models.RunSummary, payload []byte) map[string]interface{} {
	return map[string]interface{}{
		"run_id":    summary.ID,
		"success":   summary.SuccessCount,
		"failed":    summary.FailedCount,
		"cancelled": summary.Cancelled,
		"summary":   string(payload),
	}
}

// NoopPublisher drops every summary. Used when no Redis address is set.
type NoopPublisher struct{}

var _ Publisher = NoopPublisher{}

func (NoopPublisher) PublishRun(context.Context, *models.RunSummary) error { return nil }

func (NoopPublisher) Close() error { return nil }

// NewPublisher returns a RedisPublisher when an address is configured.
func NewPublisher(cfg config.RedisConfig) Publisher {
	if cfg.Addr == "" {
		return NoopPublisher{}
	}
	return NewRedisPublisher(cfg)
}
