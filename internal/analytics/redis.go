// Package analytics records dispatched compensations in Redis.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/misfire-guard/internal/domain"
)

// Retention for compensation counters. Misfire analytics are an operator aid,
// not audit data; a month of buckets is plenty.
const retention = 30 * 24 * time.Hour

// RedisSink counts compensations per pipeline in hourly buckets.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

// Write increments the pipeline's bucket for the hour the misfire was
// detected in. Best effort from the caller's perspective.
func (s *RedisSink) Write(ctx context.Context, event domain.CompensationEvent) error {
	key := buildKey(event.Application, event.PipelineID.String(), event.DetectedAt)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, retention)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

func buildKey(application, pipelineID string, t time.Time) string {
	bucket := t.UTC().Format("2006010215")
	return fmt.Sprintf("a:%s:p:%s:misfires:%s", application, pipelineID, bucket)
}
