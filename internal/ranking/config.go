package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// secondsPerDay converts content age from seconds to days.
const secondsPerDay = 86400

// Positional weights used to pack sub-scores into one integer key. Sub-scores
// are clamped to [0, 9] and the lowest term to [0, 999], so terms never
// overlap.
const (
	distanceWeight = 10000
	dateWeight     = 1000
	seenWeight     = 1000
)

// ErrInvalidConfig is returned when a calibration would break the scoring
// formulas (division by zero or overlapping key terms).
var ErrInvalidConfig = errors.New("invalid ranking config")

// QualityWeights tunes the age-decayed quality score.
type QualityWeights struct {
	DaysHorizon           float64 `json:"days_horizon"`            // Age in days at which a fresh item reaches zero (default: 356)
	RelevancyInfluence    float64 `json:"relevancy_influence"`     // Steepness of the relevancy decay curve (default: 0.025)
	RelevancyMaxDays      float64 `json:"relevancy_max_days"`      // Asymptotic freshness bonus in days (default: 30)
	DistanceInfluence     float64 `json:"distance_influence"`      // Multiplier on distance point for issues/propositions (default: 2)
	IssueRelevancyDivisor float64 `json:"issue_relevancy_divisor"` // Issues have relevancy divided by this, rounded up (default: 10)
}

// BadgeWeights tunes moderation badge and reply boosts for comments.
type BadgeWeights struct {
	TopDownInfluence  float64 `json:"top_down_influence"` // default: 2
	TopDownAdd        float64 `json:"top_down_add"`       // default: 20
	ImpactInfluence   float64 `json:"impact_influence"`   // default: 2.5
	ImpactAdd         float64 `json:"impact_add"`         // default: 50
	CommentsInfluence float64 `json:"comments_influence"` // Added per child comment (default: 1)
}

// DistanceWeights tunes the community-distance sub-score.
type DistanceWeights struct {
	SameCommunity    int     `json:"same_community"`     // default: 9
	MaxLevelDistance int     `json:"max_level_distance"` // Cap for different communities (default: 8)
	LevelBase        float64 `json:"level_base"`         // default: 80
	LevelStep        float64 `json:"level_step"`         // default: 10
	RootComment      int     `json:"root_comment"`       // default: 9
	AdminFollowing   int     `json:"admin_following"`    // default: 9
}

// DateWeights tunes the date sub-score of the "best" ranking.
type DateWeights struct {
	OfficialIssue   int `json:"official_issue"`   // default: 3
	OpenIssue       int `json:"open_issue"`       // default: 4
	ActiveCommunity int `json:"active_community"` // default: 9
	ClosedImpact    int `json:"closed_impact"`    // Impact comments on closed issues (default: 9)
}

// SeenBuckets maps a viewer's seen count onto the 0-9 exposure score.
type SeenBuckets struct {
	Unseen   int `json:"unseen"`   // count == 0 (default: 9)
	Negative int `json:"negative"` // count < 0 (default: 1)
	FewMax   int `json:"few_max"`  // default: 3
	Few      int `json:"few"`      // 1..FewMax (default: 8)
	SomeMax  int `json:"some_max"` // default: 10
	Some     int `json:"some"`     // FewMax+1..SomeMax (default: 7)
	Many     int `json:"many"`     // > SomeMax (default: 6)
	Fallback int `json:"fallback"` // default: 2
}

// Limits holds the clamping bounds applied before key packing.
type Limits struct {
	SubScoreMax int `json:"sub_score_max"` // default: 9
	QualityMax  int `json:"quality_max"`   // default: 999
	UpvotesMax  int `json:"upvotes_max"`   // default: 999
}

// Config holds every tunable of the ranking engine. It is a plain value:
// rankers receive it explicitly and never modify it.
type Config struct {
	Quality              QualityWeights  `json:"quality"`
	Badges               BadgeWeights    `json:"badges"`
	Distance             DistanceWeights `json:"distance"`
	Date                 DateWeights     `json:"date"`
	Seen                 SeenBuckets     `json:"seen"`
	Limits               Limits          `json:"limits"`
	SimilarNameThreshold float64         `json:"similar_name_threshold"` // Percent similarity for promotion (default: 90)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string `json:"version"`
	Ranking Config `json:"ranking"`
}

// DefaultConfig returns the default ranking configuration.
func DefaultConfig() Config {
	return Config{
		Quality: QualityWeights{
			DaysHorizon:           356,
			RelevancyInfluence:    0.025,
			RelevancyMaxDays:      30,
			DistanceInfluence:     2,
			IssueRelevancyDivisor: 10,
		},
		Badges: BadgeWeights{
			TopDownInfluence:  2,
			TopDownAdd:        20,
			ImpactInfluence:   2.5,
			ImpactAdd:         50,
			CommentsInfluence: 1,
		},
		Distance: DistanceWeights{
			SameCommunity:    9,
			MaxLevelDistance: 8,
			LevelBase:        80,
			LevelStep:        10,
			RootComment:      9,
			AdminFollowing:   9,
		},
		Date: DateWeights{
			OfficialIssue:   3,
			OpenIssue:       4,
			ActiveCommunity: 9,
			ClosedImpact:    9,
		},
		Seen: SeenBuckets{
			Unseen:   9,
			Negative: 1,
			FewMax:   3,
			Few:      8,
			SomeMax:  10,
			Some:     7,
			Many:     6,
			Fallback: 2,
		},
		Limits: Limits{
			SubScoreMax: 9,
			QualityMax:  999,
			UpvotesMax:  999,
		},
		SimilarNameThreshold: 90,
	}
}

// Validate rejects configurations that would divide by zero or let packed
// key terms overlap.
func (c Config) Validate() error {
	var errs []error
	if c.Quality.RelevancyInfluence == 0 {
		errs = append(errs, errors.New("quality.relevancy_influence must be non-zero"))
	}
	if c.Quality.RelevancyMaxDays == 0 {
		errs = append(errs, errors.New("quality.relevancy_max_days must be non-zero"))
	}
	if c.Quality.IssueRelevancyDivisor == 0 {
		errs = append(errs, errors.New("quality.issue_relevancy_divisor must be non-zero"))
	}
	if c.Distance.LevelStep == 0 {
		errs = append(errs, errors.New("distance.level_step must be non-zero"))
	}
	if c.Limits.SubScoreMax < 0 || c.Limits.SubScoreMax > 9 {
		errs = append(errs, fmt.Errorf("limits.sub_score_max must be within [0, 9], got %d", c.Limits.SubScoreMax))
	}
	if c.Limits.QualityMax < 0 || c.Limits.QualityMax >= seenWeight {
		errs = append(errs, fmt.Errorf("limits.quality_max must be within [0, %d), got %d", seenWeight, c.Limits.QualityMax))
	}
	if c.Limits.UpvotesMax < 0 || c.Limits.UpvotesMax >= dateWeight {
		errs = append(errs, fmt.Errorf("limits.upvotes_max must be within [0, %d), got %d", dateWeight, c.Limits.UpvotesMax))
	}
	if c.SimilarNameThreshold <= 0 || c.SimilarNameThreshold > 100 {
		errs = append(errs, fmt.Errorf("similar_name_threshold must be within (0, 100], got %.2f", c.SimilarNameThreshold))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// LoadCalibration loads ranking tunables from a JSON calibration file.
// An empty path returns the defaults. If the file can't be read, parsed or
// validated, the defaults are returned together with the error so callers
// can degrade gracefully. Partial files are merged over the defaults.
func LoadCalibration(filePath string) (Config, error) {
	if filePath == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultConfig(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var calibration CalibrationConfig
	if err := json.Unmarshal(data, &calibration); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultConfig(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	merged, overrides := mergeCalibration(DefaultConfig(), calibration.Ranking)
	if err := merged.Validate(); err != nil {
		slog.Warn("calibration file rejected, using defaults",
			"path", filePath,
			"error", err)
		return DefaultConfig(), err
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"version", calibration.Version,
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)",
			"version", calibration.Version)
	}
	return merged, nil
}

// MergeCalibration merges override values into base. Only non-zero values
// from the override are applied, which allows partial calibration files.
func MergeCalibration(base, override Config) Config {
	merged, _ := mergeCalibration(base, override)
	return merged
}

// mergeCalibration merges and reports each changed value as
// "name: old -> new".
func mergeCalibration(base, override Config) (Config, []string) {
	m := merger{}
	result := base

	m.float("quality.days_horizon", &result.Quality.DaysHorizon, override.Quality.DaysHorizon)
	m.float("quality.relevancy_influence", &result.Quality.RelevancyInfluence, override.Quality.RelevancyInfluence)
	m.float("quality.relevancy_max_days", &result.Quality.RelevancyMaxDays, override.Quality.RelevancyMaxDays)
	m.float("quality.distance_influence", &result.Quality.DistanceInfluence, override.Quality.DistanceInfluence)
	m.float("quality.issue_relevancy_divisor", &result.Quality.IssueRelevancyDivisor, override.Quality.IssueRelevancyDivisor)

	m.float("badges.top_down_influence", &result.Badges.TopDownInfluence, override.Badges.TopDownInfluence)
	m.float("badges.top_down_add", &result.Badges.TopDownAdd, override.Badges.TopDownAdd)
	m.float("badges.impact_influence", &result.Badges.ImpactInfluence, override.Badges.ImpactInfluence)
	m.float("badges.impact_add", &result.Badges.ImpactAdd, override.Badges.ImpactAdd)
	m.float("badges.comments_influence", &result.Badges.CommentsInfluence, override.Badges.CommentsInfluence)

	m.int("distance.same_community", &result.Distance.SameCommunity, override.Distance.SameCommunity)
	m.int("distance.max_level_distance", &result.Distance.MaxLevelDistance, override.Distance.MaxLevelDistance)
	m.float("distance.level_base", &result.Distance.LevelBase, override.Distance.LevelBase)
	m.float("distance.level_step", &result.Distance.LevelStep, override.Distance.LevelStep)
	m.int("distance.root_comment", &result.Distance.RootComment, override.Distance.RootComment)
	m.int("distance.admin_following", &result.Distance.AdminFollowing, override.Distance.AdminFollowing)

	m.int("date.official_issue", &result.Date.OfficialIssue, override.Date.OfficialIssue)
	m.int("date.open_issue", &result.Date.OpenIssue, override.Date.OpenIssue)
	m.int("date.active_community", &result.Date.ActiveCommunity, override.Date.ActiveCommunity)
	m.int("date.closed_impact", &result.Date.ClosedImpact, override.Date.ClosedImpact)

	m.int("seen.unseen", &result.Seen.Unseen, override.Seen.Unseen)
	m.int("seen.negative", &result.Seen.Negative, override.Seen.Negative)
	m.int("seen.few_max", &result.Seen.FewMax, override.Seen.FewMax)
	m.int("seen.few", &result.Seen.Few, override.Seen.Few)
	m.int("seen.some_max", &result.Seen.SomeMax, override.Seen.SomeMax)
	m.int("seen.some", &result.Seen.Some, override.Seen.Some)
	m.int("seen.many", &result.Seen.Many, override.Seen.Many)
	m.int("seen.fallback", &result.Seen.Fallback, override.Seen.Fallback)

	m.int("limits.sub_score_max", &result.Limits.SubScoreMax, override.Limits.SubScoreMax)
	m.int("limits.quality_max", &result.Limits.QualityMax, override.Limits.QualityMax)
	m.int("limits.upvotes_max", &result.Limits.UpvotesMax, override.Limits.UpvotesMax)

	m.float("similar_name_threshold", &result.SimilarNameThreshold, override.SimilarNameThreshold)

	return result, m.overrides
}

type merger struct {
	overrides []string
}

func (m *merger) float(name string, dst *float64, override float64) {
	if override == 0 || override == *dst {
		return
	}
	m.overrides = append(m.overrides, fmt.Sprintf("%s: %.3f -> %.3f", name, *dst, override))
	*dst = override
}

func (m *merger) int(name string, dst *int, override int) {
	if override == 0 || override == *dst {
		return
	}
	m.overrides = append(m.overrides, fmt.Sprintf("%s: %d -> %d", name, *dst, override))
	*dst = override
}
