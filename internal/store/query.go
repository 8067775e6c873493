// Package store is the content repository: filtered, ordered and paged
// retrieval of content items, name searches and duplicate detection. The
// ranking engine never calls it; callers load items here and hand them to
// the rankers.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/onnwee/townhall/internal/content"
)

// DefaultLimit is the page size used when a query does not set one.
const DefaultLimit = 20

// Query errors.
var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidQuery = errors.New("invalid query")
)

// Op is a filter comparison.
type Op string

const (
	// OpEq matches equal values.
	OpEq Op = "eq"
	// OpAfter matches values strictly greater than Value; used for dates.
	OpAfter Op = "after"
	// OpIn matches any of Values. A nil member matches a missing value.
	OpIn Op = "in"
	// OpIsNull matches missing values.
	OpIsNull Op = "is_null"
)

// Filter constrains one field.
type Filter struct {
	Field  string
	Op     Op
	Value  any
	Values []any
}

// Eq builds an equality filter. A nil value means IS NULL.
func Eq(field string, value any) Filter {
	if value == nil {
		return IsNull(field)
	}
	return Filter{Field: field, Op: OpEq, Value: value}
}

// After builds a strictly-after filter.
func After(field string, t time.Time) Filter {
	return Filter{Field: field, Op: OpAfter, Value: t}
}

// In builds a set membership filter.
func In(field string, values ...any) Filter {
	return Filter{Field: field, Op: OpIn, Values: values}
}

// IsNull builds a missing-value filter.
func IsNull(field string) Filter {
	return Filter{Field: field, Op: OpIsNull}
}

// Sort orders results by one field.
type Sort struct {
	Field string
	Desc  bool
}

// Query selects items of one kind.
type Query struct {
	Kind    content.Kind
	Filters []Filter
	OrderBy []Sort
	Limit   int // 0 means DefaultLimit
	Offset  int
}

// Validate checks the kind, every field name, and paging bounds.
func (q Query) Validate() error {
	if _, ok := tables[q.Kind]; !ok {
		return fmt.Errorf("%w: %q", content.ErrUnknownKind, q.Kind)
	}
	for _, f := range q.Filters {
		if !HasField(q.Kind, f.Field) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, q.Kind, f.Field)
		}
		switch f.Op {
		case OpEq:
			if f.Value == nil {
				return fmt.Errorf("%w: nil value for %s, use IsNull", ErrInvalidQuery, f.Field)
			}
		case OpAfter:
			if f.Value == nil {
				return fmt.Errorf("%w: nil value for %s", ErrInvalidQuery, f.Field)
			}
		case OpIn:
			if len(f.Values) == 0 {
				return fmt.Errorf("%w: empty set for %s", ErrInvalidQuery, f.Field)
			}
		case OpIsNull:
		default:
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, f.Op)
		}
	}
	for _, s := range q.OrderBy {
		if !HasField(q.Kind, s.Field) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, q.Kind, s.Field)
		}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: negative limit or offset", ErrInvalidQuery)
	}
	return nil
}

func (q Query) limit() int {
	if q.Limit == 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Repository loads content items.
type Repository interface {
	// Find returns the items matching q.
	Find(ctx context.Context, q Query) ([]content.Item, error)
	// FindByNameLike searches items of q.Kind by name, then applies q's
	// filters, order and paging.
	FindByNameLike(ctx context.Context, nameLike string, q Query) ([]content.Item, error)
	// Exists reports whether an item with the same identifying fields is
	// already stored.
	Exists(ctx context.Context, item content.Item) (bool, error)
}

// identityFilters lists the fields that make two items duplicates of each
// other. Unset relations must be unset on the duplicate too.
func identityFilters(item content.Item) []Filter {
	doc := content.ToDocument(item)
	ref := func(field, id string) Filter {
		if id == "" {
			return IsNull(field)
		}
		return Eq(field, id)
	}

	switch item.Kind() {
	case content.KindIssue:
		return []Filter{Eq("title", doc.Title), ref("community_id", doc.CommunityID)}
	case content.KindProposition:
		return []Filter{Eq("content2", doc.Content2), ref("issue_id", doc.IssueID), ref("community_id", doc.CommunityID)}
	case content.KindComment:
		return []Filter{Eq("title", doc.Title), Eq("content", doc.Content), ref("issue_id", doc.IssueID)}
	case content.KindCommunity:
		return []Filter{Eq("url", doc.URL)}
	case content.KindCommunityFollowing:
		return []Filter{ref("user_id", doc.UserID), ref("community_id", doc.CommunityID)}
	case content.KindIssueFollowing:
		return []Filter{ref("user_id", doc.UserID), ref("issue_id", doc.IssueID)}
	case content.KindUser:
		return []Filter{Eq("username", doc.Username)}
	case content.KindEvent:
		return []Filter{Eq("name", doc.Name), ref("community_id", doc.CommunityID), Eq("date_begin", doc.DateBegin)}
	}
	return nil
}

// keepsSpaces reports whether name searches on kind match free text, where
// whitespace is significant.
func keepsSpaces(kind content.Kind) bool {
	return slices.Contains([]content.Kind{content.KindComment, content.KindProposition}, kind)
}
