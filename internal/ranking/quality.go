package ranking

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/onnwee/townhall/internal/content"
)

// ErrDegenerateDecay is returned when the adjusted relevancy lands exactly on
// the pole of the decay curve. With the default tunings relevancy is rounded
// to an integer before it enters the curve, so this only happens under
// alternate calibrations.
var ErrDegenerateDecay = errors.New("relevancy decay is undefined for this relevancy")

// Quality returns the age-decayed quality score of an item relative to a
// reference community. The result is not clamped.
func Quality(item content.Item, ref *content.Community, now time.Time, cfg Config) (int, error) {
	b := item.Meta()
	ageDays := float64(now.Unix()-b.CreatedAt.Unix()) / secondsPerDay
	daysPoint := cfg.Quality.DaysHorizon - ageDays

	relevancy, err := adjustedRelevancy(item, ref, cfg)
	if err != nil {
		return 0, err
	}

	decay, err := relevancyDecay(relevancy, cfg.Quality)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", item.Kind(), b.ID, err)
	}
	return int(math.Round(daysPoint - decay)), nil
}

// adjustedRelevancy applies the per-variant boosts and nerfs to the raw
// global relevancy.
func adjustedRelevancy(item content.Item, ref *content.Community, cfg Config) (float64, error) {
	relevancy := item.Meta().GlobalRelevancy

	switch v := item.(type) {
	case *content.Issue:
		relevancy = math.Ceil(relevancy / cfg.Quality.IssueRelevancyDivisor)
		relevancy += float64(communityDistance(v.Community, ref, cfg.Distance)) * cfg.Quality.DistanceInfluence
	case *content.Proposition:
		relevancy += float64(communityDistance(v.Community, ref, cfg.Distance)) * cfg.Quality.DistanceInfluence
	case *content.Comment:
		relevancy = commentBoost(v, relevancy, cfg.Badges, true)
	case *content.Community, *content.CommunityFollowing, *content.IssueFollowing, *content.User, *content.Event:
	default:
		return 0, fmt.Errorf("%w: %T", content.ErrUnknownKind, item)
	}
	return relevancy, nil
}

// commentBoost applies the top-down badge, optionally the impact badge, and
// the per-reply bump, in that order.
func commentBoost(c *content.Comment, v float64, w BadgeWeights, impact bool) float64 {
	if c.BadgeTopDown {
		v = v*w.TopDownInfluence + w.TopDownAdd
	}
	if impact && c.BadgeImpact {
		v = v*w.ImpactInfluence + w.ImpactAdd
	}
	return v + float64(len(c.Comments))*w.CommentsInfluence
}

// relevancyDecay maps relevancy onto a bounded freshness offset that tends
// to RelevancyMaxDays as relevancy grows.
func relevancyDecay(relevancy float64, w QualityWeights) (float64, error) {
	k := w.RelevancyInfluence
	denominator := -k * (math.Round(relevancy) + 1/(w.RelevancyMaxDays*k))
	if denominator == 0 {
		return 0, ErrDegenerateDecay
	}
	return 1/denominator + w.RelevancyMaxDays, nil
}

// communityDistance scores how close a content community is to the
// reference. Identity, not equality, decides "same community": two nil
// communities are the same.
func communityDistance(c, ref *content.Community, w DistanceWeights) int {
	if c == ref {
		return w.SameCommunity
	}
	if c == nil || ref == nil {
		return 0
	}
	levelDifference := float64(c.Level - ref.Level)
	return min(int(math.Round((w.LevelBase-levelDifference)/w.LevelStep)), w.MaxLevelDistance)
}

// distancePoint is the variant-specific affinity score used by the "best"
// ordering.
func distancePoint(item content.Item, ref *content.Community, w DistanceWeights) (int, error) {
	switch v := item.(type) {
	case *content.Issue:
		return communityDistance(v.Community, ref, w), nil
	case *content.Proposition:
		return communityDistance(v.Community, ref, w), nil
	case *content.Comment:
		if v.IsRoot() {
			return w.RootComment, nil
		}
		return 0, nil
	case *content.CommunityFollowing:
		return adminPoint(v.AdminLevel, w), nil
	case *content.IssueFollowing:
		return adminPoint(v.AdminLevel, w), nil
	case *content.Community, *content.User, *content.Event:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %T", content.ErrUnknownKind, item)
}

func adminPoint(level int, w DistanceWeights) int {
	if level >= 1 {
		return w.AdminFollowing
	}
	return 0
}
