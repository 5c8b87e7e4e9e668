// Package analytics counts trigger firings in Redis so dashboards can chart
// reminder activity per item without touching the primary database.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/redis/go-redis/v9"
)

// DefaultRetention keeps firing counters for 30 days.
const DefaultRetention = 30 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	window    time.Duration
	retention time.Duration
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{
		client:    client,
		window:    time.Hour,
		retention: DefaultRetention,
	}
}

// WithWindow sets the bucket width for firing counters.
func (s *RedisSink) WithWindow(window time.Duration) *RedisSink {
	if window > 0 {
		s.window = window
	}
	return s
}

// WithRetention sets the counter TTL.
func (s *RedisSink) WithRetention(retention time.Duration) *RedisSink {
	if retention > 0 {
		s.retention = retention
	}
	return s
}

// Record increments the firing counter for the item's current bucket. The
// write is best-effort: failures are logged and never surface to the firing
// path.
func (s *RedisSink) Record(ctx context.Context, itemID, triggerID uuid.UUID, firedAt time.Time) {
	key := buildKey(itemID.String(), triggerID.String(), firedAt, s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: record firing for trigger %s: %v", triggerID, err)
	}
}

// Count returns the firing count for an item's trigger within the bucket
// containing t. Missing keys count as zero.
func (s *RedisSink) Count(ctx context.Context, itemID, triggerID uuid.UUID, t time.Time) (int64, error) {
	key := buildKey(itemID.String(), triggerID.String(), t, s.window)
	n, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

func buildKey(itemID, triggerID string, t time.Time, window time.Duration) string {
	return fmt.Sprintf("i:%s:t:%s:fired:%s", itemID, triggerID, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("200601021504")
	}
}
