package ranking

import (
	"time"

	"github.com/onnwee/townhall/internal/content"
	"github.com/onnwee/townhall/internal/tracking"
)

// SeenPoint buckets how often a viewer has seen an item into the 0-9
// exposure score. Unseen items score highest.
func SeenPoint(count int, w SeenBuckets) int {
	switch {
	case count == 0:
		return w.Unseen
	case count < 0:
		return w.Negative
	case count <= w.FewMax:
		return w.Few
	case count <= w.SomeMax:
		return w.Some
	case count > w.SomeMax:
		return w.Many
	default:
		return w.Fallback
	}
}

// RankNew orders items by seen bucket first, then quality. counts may be nil
// when there is no viewer, in which case every item counts as unseen.
func RankNew(items []content.Item, ref *content.Community, counts tracking.Counts, now time.Time, order Order, cfg Config) ([]Ranked, error) {
	ranked := make([]Ranked, len(items))
	for i, item := range items {
		seen := clamp(SeenPoint(counts.Get(item.Meta().ID), cfg.Seen), 0, cfg.Limits.SubScoreMax)

		quality, err := Quality(item, ref, now, cfg)
		if err != nil {
			return nil, err
		}
		quality = clamp(quality, 0, cfg.Limits.QualityMax)

		ranked[i] = Ranked{Item: item, Points: seen*seenWeight + quality}
	}
	sortByPoints(ranked, order)
	return ranked, nil
}
