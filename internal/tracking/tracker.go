// Package tracking counts per-viewer events (such as "seen") on content items
// and reports those counts back to the ranking engine.
package tracking

import (
	"context"
	"errors"
	"sync"

	"github.com/onnwee/townhall/internal/content"
)

// EventSeen is the event kind recorded when a viewer is shown an item.
const EventSeen = "seen"

// Validation errors.
var (
	ErrMissingViewer = errors.New("viewer id is required")
	ErrMissingKind   = errors.New("event kind is required")
)

// Counts maps item ID to event count.
type Counts map[string]int

// Get returns the count for an item; items never tracked count as 0.
func (c Counts) Get(itemID string) int {
	return c[itemID]
}

// Tracker reports how many times a viewer triggered an event on each item.
type Tracker interface {
	// ComputeTrackingCount returns a count for every item in items. It is
	// called once per ranking request, never per item.
	ComputeTrackingCount(ctx context.Context, items []content.Item, viewerID, kind string) (Counts, error)
}

// Recorder records tracking events.
type Recorder interface {
	// Record increments the count of kind for a viewer on an item.
	Record(ctx context.Context, viewerID, kind, itemID string) error
}

// InMemoryTracker is an in-memory Tracker and Recorder.
// Thread-safe via RWMutex.
type InMemoryTracker struct {
	mu     sync.RWMutex
	counts map[string]map[string]int // viewer\x00kind -> itemID -> count
}

// NewInMemoryTracker creates an empty in-memory tracker.
func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{
		counts: make(map[string]map[string]int),
	}
}

// makeKey joins viewer and kind with a null byte so neither can collide.
func makeKey(viewerID, kind string) string {
	return viewerID + "\x00" + kind
}

// Record increments the count of kind for viewerID on itemID.
func (t *InMemoryTracker) Record(ctx context.Context, viewerID, kind, itemID string) error {
	if viewerID == "" {
		return ErrMissingViewer
	}
	if kind == "" {
		return ErrMissingKind
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	key := makeKey(viewerID, kind)
	if t.counts[key] == nil {
		t.counts[key] = make(map[string]int)
	}
	t.counts[key][itemID]++
	return nil
}

// Set forces a count, including negative sentinel values.
func (t *InMemoryTracker) Set(viewerID, kind, itemID string, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := makeKey(viewerID, kind)
	if t.counts[key] == nil {
		t.counts[key] = make(map[string]int)
	}
	t.counts[key][itemID] = count
}

// ComputeTrackingCount returns the counts recorded for viewerID.
func (t *InMemoryTracker) ComputeTrackingCount(ctx context.Context, items []content.Item, viewerID, kind string) (Counts, error) {
	if viewerID == "" {
		return nil, ErrMissingViewer
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	recorded := t.counts[makeKey(viewerID, kind)]

	counts := make(Counts, len(items))
	for _, item := range items {
		id := item.Meta().ID
		counts[id] = recorded[id]
	}
	return counts, nil
}
