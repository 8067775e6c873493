package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/townhall/internal/content"
)

// InMemoryRepository is an in-memory Repository.
// Thread-safe via RWMutex. Stored items are returned as-is, not copied, so
// relations keep pointing at the same instances.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[content.Kind][]content.Item
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[content.Kind][]content.Item),
	}
}

// Add stores an item, assigning a new UUID when it has no ID.
func (r *InMemoryRepository) Add(ctx context.Context, item content.Item) (string, error) {
	if err := content.Validate(item); err != nil {
		return "", err
	}
	if _, ok := tables[item.Kind()]; !ok {
		return "", fmt.Errorf("%w: %q", content.ErrUnknownKind, item.Kind())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := item.Meta()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	r.items[item.Kind()] = append(r.items[item.Kind()], item)
	return b.ID, nil
}

// Find returns the items matching q.
func (r *InMemoryRepository) Find(ctx context.Context, q Query) ([]content.Item, error) {
	return r.find(ctx, q, nil)
}

// FindByNameLike searches q.Kind by name, then applies q.
func (r *InMemoryRepository) FindByNameLike(ctx context.Context, nameLike string, q Query) ([]content.Item, error) {
	normalized := normalizeNameLike(q.Kind, nameLike)
	return r.find(ctx, q, func(doc content.Document) bool {
		return matchesNameLike(doc, normalized)
	})
}

// Exists reports whether an item with the same identifying fields is stored.
func (r *InMemoryRepository) Exists(ctx context.Context, item content.Item) (bool, error) {
	if err := content.Validate(item); err != nil {
		return false, err
	}
	found, err := r.find(ctx, Query{Kind: item.Kind(), Filters: identityFilters(item), Limit: 1}, nil)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

func (r *InMemoryRepository) find(ctx context.Context, q Query, match func(content.Document) bool) ([]content.Item, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type row struct {
		item content.Item
		doc  content.Document
	}
	var rows []row
	for _, item := range r.items[q.Kind] {
		doc := content.ToDocument(item)
		if match != nil && !match(doc) {
			continue
		}
		if !matchesFilters(doc, q.Filters) {
			continue
		}
		rows = append(rows, row{item: item, doc: doc})
	}

	if len(q.OrderBy) > 0 {
		slices.SortStableFunc(rows, func(a, b row) int {
			for _, s := range q.OrderBy {
				x, y := fieldValue(a.doc, s.Field), fieldValue(b.doc, s.Field)
				c := compareValues(x, y)
				if s.Desc && x != nil && y != nil {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	start := min(q.Offset, len(rows))
	end := min(start+q.limit(), len(rows))
	out := make([]content.Item, 0, end-start)
	for _, matched := range rows[start:end] {
		out = append(out, matched.item)
	}
	return out, nil
}

func matchesFilters(doc content.Document, filters []Filter) bool {
	for _, f := range filters {
		v := fieldValue(doc, f.Field)
		switch f.Op {
		case OpEq:
			if v == nil || compareValues(v, f.Value) != 0 {
				return false
			}
		case OpAfter:
			if v == nil || compareValues(v, f.Value) <= 0 {
				return false
			}
		case OpIsNull:
			if v != nil {
				return false
			}
		case OpIn:
			if !slices.ContainsFunc(f.Values, func(member any) bool {
				if member == nil {
					return v == nil
				}
				return v != nil && compareValues(v, member) == 0
			}) {
				return false
			}
		}
	}
	return true
}

// matchesNameLike mirrors the SQL name search built by BuildNameLike.
func matchesNameLike(doc content.Document, q string) bool {
	lower := strings.ToLower
	switch doc.Kind {
	case content.KindComment:
		return strings.Contains(lower(doc.Content), q) || strings.Contains(lower(doc.Title), q)
	case content.KindProposition:
		return strings.Contains(lower(doc.Content2), q) || strings.Contains(lower(doc.Content1), q)
	case content.KindCommunity:
		if slices.Contains(excludedStatuses, doc.Status) {
			return false
		}
		name := lower(doc.Name)
		return strings.HasPrefix(doc.URL, content.CleanURL(q)) ||
			strings.HasPrefix(name, q) ||
			strings.Contains(name, " "+q)
	case content.KindIssue:
		return strings.Contains(lower(doc.Tag), q) || strings.Contains(lower(doc.Title), q)
	case content.KindUser:
		return strings.HasPrefix(lower(doc.Username), q) ||
			strings.HasPrefix(lower(doc.FirstName), q) ||
			strings.HasPrefix(lower(doc.LastName), q) ||
			strings.HasPrefix(lower(doc.FirstName+doc.LastName), q)
	}
	return strings.Contains(lower(doc.Name), q)
}

// compareValues orders field values ascending with NULL after everything
// else. Numbers compare across int and float.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
