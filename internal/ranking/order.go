package ranking

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/onnwee/townhall/internal/content"
)

// Order is a sort direction.
type Order string

// Sort directions.
const (
	Desc Order = "DESC"
	Asc  Order = "ASC"
)

// ErrInvalidOrder is returned for a direction other than ASC or DESC.
var ErrInvalidOrder = errors.New("invalid sort order")

// ParseOrder parses a sort direction. Empty means DESC.
func ParseOrder(s string) (Order, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(Desc):
		return Desc, nil
	case string(Asc):
		return Asc, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOrder, s)
}

// Ranked pairs an item with the key it was ordered by.
type Ranked struct {
	Item   content.Item
	Points int
}

// Items strips the keys from a ranking.
func Items(ranked []Ranked) []content.Item {
	out := make([]content.Item, len(ranked))
	for i, r := range ranked {
		out[i] = r.Item
	}
	return out
}

// sortByPoints stably sorts descending by points. For Asc the descending
// result is reversed as a block, so tied items come out in reverse input
// order.
func sortByPoints(ranked []Ranked, order Order) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Points > ranked[j].Points
	})
	if order == Asc {
		slices.Reverse(ranked)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
