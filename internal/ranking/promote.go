package ranking

import (
	"strings"
	"unicode"

	"github.com/onnwee/townhall/internal/content"
	"github.com/onnwee/townhall/internal/similarity"
)

// NormalizeQuery lowercases a name query and removes all whitespace.
func NormalizeQuery(query string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, query)
}

// Matches reports whether any name field of item is at least threshold
// percent similar to the normalized query.
func Matches(item content.Item, normalized string, threshold float64) bool {
	similar := func(field, query string) bool {
		return similarity.Percent(NormalizeQuery(field), query) >= threshold
	}

	switch v := item.(type) {
	case *content.Community:
		return similar(v.URL, content.CleanURL(normalized)) || similar(v.Name, normalized)
	case *content.Issue:
		return similar(v.Tag, normalized) || similar(v.Title, normalized)
	case *content.User:
		return similar(v.Username, normalized)
	}
	if name, ok := content.DisplayName(item); ok {
		return similar(name, normalized)
	}
	return false
}

// PromoteMatches moves items whose name closely matches query to the front.
// Both the promoted and the remaining items keep their input order. The
// number of promoted items is returned alongside.
func PromoteMatches(items []content.Item, query string, cfg Config) ([]content.Item, int) {
	normalized := NormalizeQuery(query)

	front := make([]content.Item, 0, len(items))
	var rest []content.Item
	for _, item := range items {
		if Matches(item, normalized, cfg.SimilarNameThreshold) {
			front = append(front, item)
		} else {
			rest = append(rest, item)
		}
	}
	return append(front, rest...), len(front)
}
