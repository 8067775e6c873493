package tracking

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/townhall/internal/content"
)

// RedisTracker stores tracking counts in Redis hashes, one hash per viewer
// and event kind, keyed by item ID.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTracker creates a Redis-backed tracker. A positive ttl refreshes the
// expiry of a viewer's hash on every recorded event.
func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	return &RedisTracker{
		client: client,
		ttl:    ttl,
	}
}

func trackingKey(kind, viewerID string) string {
	return fmt.Sprintf("tracking:%s:%s", kind, viewerID)
}

// Record increments the count of kind for viewerID on itemID.
func (t *RedisTracker) Record(ctx context.Context, viewerID, kind, itemID string) error {
	if viewerID == "" {
		return ErrMissingViewer
	}
	if kind == "" {
		return ErrMissingKind
	}

	key := trackingKey(kind, viewerID)
	pipe := t.client.TxPipeline()
	pipe.HIncrBy(ctx, key, itemID, 1)
	if t.ttl > 0 {
		pipe.Expire(ctx, key, t.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record tracking event: %w", err)
	}
	return nil
}

// ComputeTrackingCount reads the counts for all items in a single HMGET.
func (t *RedisTracker) ComputeTrackingCount(ctx context.Context, items []content.Item, viewerID, kind string) (Counts, error) {
	if viewerID == "" {
		return nil, ErrMissingViewer
	}

	counts := make(Counts, len(items))
	if len(items) == 0 {
		return counts, nil
	}

	fields := make([]string, len(items))
	for i, item := range items {
		fields[i] = item.Meta().ID
	}

	values, err := t.client.HMGet(ctx, trackingKey(kind, viewerID), fields...).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read tracking counts: %w", err)
	}

	for i, field := range fields {
		counts[field] = 0
		if i >= len(values) || values[i] == nil {
			continue
		}
		raw, ok := values[i].(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid tracking count for %s: %w", field, err)
		}
		counts[field] = n
	}
	return counts, nil
}
