package ranking

import (
	"math"
	"slices"
	"sort"

	"github.com/onnwee/townhall/internal/content"
)

// RankByRelevancy orders items by global relevancy. The comparison runs on
// the raw float; Points only carries the rounded value for display.
func RankByRelevancy(items []content.Item, order Order) []Ranked {
	ranked := make([]Ranked, len(items))
	for i, item := range items {
		ranked[i] = Ranked{Item: item, Points: int(math.Round(item.Meta().GlobalRelevancy))}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Item.Meta().GlobalRelevancy > ranked[j].Item.Meta().GlobalRelevancy
	})
	if order == Asc {
		slices.Reverse(ranked)
	}
	return ranked
}
