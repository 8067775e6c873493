package content

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// Validation errors.
var (
	ErrInvalidContent = errors.New("invalid content")
	ErrUnknownKind    = errors.New("unknown content kind")
)

// Validate checks the fields every ranker depends on. A nil item, a zero
// creation timestamp or a non-finite relevancy value is rejected.
func Validate(item Item) error {
	if isNil(item) {
		return fmt.Errorf("%w: nil item", ErrInvalidContent)
	}
	b := item.Meta()
	if b.CreatedAt.IsZero() {
		return fmt.Errorf("%w: %s %q has no creation timestamp", ErrInvalidContent, item.Kind(), b.ID)
	}
	if !finite(b.GlobalRelevancy) {
		return fmt.Errorf("%w: %s %q has non-numeric global relevancy", ErrInvalidContent, item.Kind(), b.ID)
	}
	if b.GlobalRelevancyScore != nil && !finite(*b.GlobalRelevancyScore) {
		return fmt.Errorf("%w: %s %q has non-numeric relevancy score", ErrInvalidContent, item.Kind(), b.ID)
	}
	if b.ClusterGlobalRelevancyScore != nil && !finite(*b.ClusterGlobalRelevancyScore) {
		return fmt.Errorf("%w: %s %q has non-numeric cluster score", ErrInvalidContent, item.Kind(), b.ID)
	}
	return nil
}

// ValidateAll validates every item and returns the first failure.
func ValidateAll(items []Item) error {
	for _, item := range items {
		if err := Validate(item); err != nil {
			return err
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// isNil catches both a nil interface and a typed nil pointer.
func isNil(item Item) bool {
	if item == nil {
		return true
	}
	switch v := item.(type) {
	case *Issue:
		return v == nil
	case *Proposition:
		return v == nil
	case *Comment:
		return v == nil
	case *Community:
		return v == nil
	case *CommunityFollowing:
		return v == nil
	case *IssueFollowing:
		return v == nil
	case *User:
		return v == nil
	case *Event:
		return v == nil
	}
	return false
}

// CommunityOf returns the community an item belongs to, or nil when the
// variant has no community relation.
func CommunityOf(item Item) *Community {
	switch v := item.(type) {
	case *Issue:
		return v.Community
	case *Proposition:
		return v.Community
	case *CommunityFollowing:
		return v.Community
	case *Event:
		return v.Community
	}
	return nil
}

// ParentIssue returns the issue an item hangs off and whether the variant
// has an issue relation at all.
func ParentIssue(item Item) (*Issue, bool) {
	switch v := item.(type) {
	case *Proposition:
		return v.Issue, true
	case *Comment:
		return v.Issue, true
	case *IssueFollowing:
		return v.Issue, true
	}
	return nil, false
}

// DisplayName returns the generic "name" field for variants that carry one.
func DisplayName(item Item) (string, bool) {
	switch v := item.(type) {
	case *Community:
		return v.Name, true
	case *Event:
		return v.Name, true
	case *Issue:
		return v.Title, true
	case *User:
		return v.Username, true
	}
	return "", false
}

// CleanURL turns a name into the slug form used for community URLs:
// transliterated to ASCII, lowercased, runs of anything other than letters
// and digits collapsed into a single dash.
func CleanURL(name string) string {
	ascii := strings.ToLower(unidecode.Unidecode(name))

	var b strings.Builder
	b.Grow(len(ascii))
	dash := false
	for _, r := range ascii {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
