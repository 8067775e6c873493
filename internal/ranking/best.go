package ranking

import (
	"fmt"
	"math"
	"time"

	"github.com/onnwee/townhall/internal/content"
)

// isClosed reports whether the discussion the items belong to has ended.
// Only the first item is inspected, and only when it hangs off an issue and
// is not a proposition.
func isClosed(items []content.Item, now time.Time) bool {
	if len(items) == 0 {
		return false
	}
	if _, ok := items[0].(*content.Proposition); ok {
		return false
	}
	issue, ok := content.ParentIssue(items[0])
	if !ok || issue == nil {
		return false
	}
	return issue.DateEnd.Before(now)
}

// BestPoints computes the packed "best" key of one item:
// distance*10000 + date*1000 + upvotes.
func BestPoints(item content.Item, ref *content.Community, closed bool, now time.Time, cfg Config) (int, error) {
	upvotes := item.Meta().Upvotes()

	distance, err := distancePoint(item, ref, cfg.Distance)
	if err != nil {
		return 0, err
	}

	date := 0
	switch v := item.(type) {
	case *content.Community:
		if v.IsActive {
			date = cfg.Date.ActiveCommunity
		}
	case *content.Comment:
		if v.BadgeImpact {
			if closed {
				date = cfg.Date.ClosedImpact
			} else {
				upvotes = upvotes*cfg.Badges.ImpactInfluence + cfg.Badges.ImpactAdd
			}
		}
		upvotes = commentBoost(v, upvotes, cfg.Badges, false)
	case *content.Issue:
		if v.Official {
			date += cfg.Date.OfficialIssue
		}
		if v.IsOpen(now) {
			date += cfg.Date.OpenIssue
		}
	case *content.Proposition, *content.CommunityFollowing, *content.IssueFollowing, *content.User, *content.Event:
	default:
		return 0, fmt.Errorf("%w: %T", content.ErrUnknownKind, item)
	}

	distance = clamp(distance, 0, cfg.Limits.SubScoreMax)
	date = clamp(date, 0, cfg.Limits.SubScoreMax)
	votes := int(math.Round(clampFloat(upvotes, 0, float64(cfg.Limits.UpvotesMax))))

	return distance*distanceWeight + date*dateWeight + votes, nil
}

// RankBest orders items by community distance, then date signals, then
// popularity.
func RankBest(items []content.Item, ref *content.Community, now time.Time, order Order, cfg Config) ([]Ranked, error) {
	closed := isClosed(items, now)

	ranked := make([]Ranked, len(items))
	for i, item := range items {
		points, err := BestPoints(item, ref, closed, now, cfg)
		if err != nil {
			return nil, err
		}
		ranked[i] = Ranked{Item: item, Points: points}
	}
	sortByPoints(ranked, order)
	return ranked, nil
}
