package tracking

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/townhall/internal/content"
)

func items(ids ...string) []content.Item {
	out := make([]content.Item, len(ids))
	for i, id := range ids {
		out[i] = &content.Issue{Base: content.Base{ID: id}}
	}
	return out
}

func TestInMemoryTracker_ComputeTrackingCount(t *testing.T) {
	ctx := context.Background()
	tracker := NewInMemoryTracker()

	for i := 0; i < 3; i++ {
		if err := tracker.Record(ctx, "viewer-1", EventSeen, "a"); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if err := tracker.Record(ctx, "viewer-2", EventSeen, "b"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	tracker.Set("viewer-1", EventSeen, "c", -1)

	counts, err := tracker.ComputeTrackingCount(ctx, items("a", "b", "c"), "viewer-1", EventSeen)
	if err != nil {
		t.Fatalf("ComputeTrackingCount() error = %v", err)
	}

	want := map[string]int{"a": 3, "b": 0, "c": -1}
	for id, n := range want {
		if counts.Get(id) != n {
			t.Errorf("count[%s] = %d, want %d", id, counts.Get(id), n)
		}
	}
}

func TestInMemoryTracker_Validation(t *testing.T) {
	ctx := context.Background()
	tracker := NewInMemoryTracker()

	if err := tracker.Record(ctx, "", EventSeen, "a"); !errors.Is(err, ErrMissingViewer) {
		t.Errorf("expected ErrMissingViewer, got %v", err)
	}
	if err := tracker.Record(ctx, "v", "", "a"); !errors.Is(err, ErrMissingKind) {
		t.Errorf("expected ErrMissingKind, got %v", err)
	}
	if _, err := tracker.ComputeTrackingCount(ctx, items("a"), "", EventSeen); !errors.Is(err, ErrMissingViewer) {
		t.Errorf("expected ErrMissingViewer, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := tracker.ComputeTrackingCount(cancelled, items("a"), "v", EventSeen); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// TestRedisTracker tests the Redis tracker against a real Redis instance.
// This test requires a Redis instance running on localhost:6379.
func TestRedisTracker(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	tracker := NewRedisTracker(client, time.Minute)
	viewer := "test-viewer-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	ctx = context.Background()
	defer client.Del(ctx, trackingKey(EventSeen, viewer))

	for i := 0; i < 4; i++ {
		if err := tracker.Record(ctx, viewer, EventSeen, "a"); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	counts, err := tracker.ComputeTrackingCount(ctx, items("a", "missing"), viewer, EventSeen)
	if err != nil {
		t.Fatalf("ComputeTrackingCount() error = %v", err)
	}
	if counts.Get("a") != 4 {
		t.Errorf("expected 4 views of a, got %d", counts.Get("a"))
	}
	if counts.Get("missing") != 0 {
		t.Errorf("expected 0 views of missing, got %d", counts.Get("missing"))
	}

	ttl, err := client.TTL(ctx, trackingKey(EventSeen, viewer)).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected ttl within a minute, got %v", ttl)
	}
}
