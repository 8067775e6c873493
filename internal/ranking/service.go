package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/townhall/internal/content"
	"github.com/onnwee/townhall/internal/tracing"
	"github.com/onnwee/townhall/internal/tracking"
	"github.com/onnwee/townhall/internal/validate"
)

// ErrTracking is returned when seen counts could not be fetched for the
// "new" ordering.
var ErrTracking = errors.New("tracking service failed")

// ServiceConfig holds the dependencies of a Service.
type ServiceConfig struct {
	Ranking Config           // Tunables; zero value means DefaultConfig()
	Tracker tracking.Tracker // Seen counts for the "new" ordering; may be nil
	Metrics *Metrics         // Optional
	Logger  *slog.Logger     // Defaults to slog.Default()
	Now     func() time.Time // Defaults to time.Now
}

// Service is the entry point for ordering content. It validates input,
// fetches seen counts, and instruments every call.
type Service struct {
	cfg     Config
	tracker tracking.Tracker
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service from cfg, filling in defaults.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		cfg:     cfg.Ranking,
		tracker: cfg.Tracker,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
	if s.cfg == (Config{}) {
		s.cfg = DefaultConfig()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Config returns the tunables the service ranks with.
func (s *Service) Config() Config {
	return s.cfg
}

// RankContentsByRelevancy orders contents by global relevancy.
func (s *Service) RankContentsByRelevancy(ctx context.Context, contents []content.Item, order string) (ranked []Ranked, err error) {
	ctx, end := s.begin(ctx, AlgorithmRelevancy, len(contents))
	defer func() { end(err) }()

	dir, err := s.prepare(contents, order)
	if err != nil || len(contents) == 0 {
		return []Ranked{}, err
	}
	tracing.SetAttributes(ctx, attribute.String("ranking.order", string(dir)))

	return RankByRelevancy(contents, dir), nil
}

// RankContentsNew orders contents by how often viewer has seen them, then
// by quality relative to community. An empty viewer skips tracking and
// treats everything as unseen.
func (s *Service) RankContentsNew(ctx context.Context, contents []content.Item, community *content.Community, locale, order, viewer string) (ranked []Ranked, err error) {
	ctx, end := s.begin(ctx, AlgorithmNew, len(contents))
	defer func() { end(err) }()

	dir, err := s.prepare(contents, order)
	if err != nil || len(contents) == 0 {
		return []Ranked{}, err
	}
	tracing.SetAttributes(ctx,
		attribute.String("ranking.order", string(dir)),
		attribute.String("ranking.locale", locale),
		attribute.Bool("ranking.has_viewer", viewer != ""),
	)

	var counts tracking.Counts
	if viewer != "" {
		if s.tracker == nil {
			return nil, fmt.Errorf("%w: no tracker configured", ErrTracking)
		}
		counts, err = s.tracker.ComputeTrackingCount(ctx, contents, viewer, tracking.EventSeen)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTracking, err)
		}
		tracing.AddEvent(ctx, "tracking.counted", attribute.Int("tracking.items", len(counts)))
	}

	return RankNew(contents, community, counts, s.now(), dir, s.cfg)
}

// RankContentsBest orders contents by community distance, date signals and
// popularity.
func (s *Service) RankContentsBest(ctx context.Context, contents []content.Item, community *content.Community, locale, order string) (ranked []Ranked, err error) {
	ctx, end := s.begin(ctx, AlgorithmBest, len(contents))
	defer func() { end(err) }()

	dir, err := s.prepare(contents, order)
	if err != nil || len(contents) == 0 {
		return []Ranked{}, err
	}
	tracing.SetAttributes(ctx,
		attribute.String("ranking.order", string(dir)),
		attribute.String("ranking.locale", locale),
	)

	return RankBest(contents, community, s.now(), dir, s.cfg)
}

// SortContentsByRelevancy is RankContentsByRelevancy without the keys.
func (s *Service) SortContentsByRelevancy(ctx context.Context, contents []content.Item, order string) ([]content.Item, error) {
	ranked, err := s.RankContentsByRelevancy(ctx, contents, order)
	if err != nil {
		return nil, err
	}
	return Items(ranked), nil
}

// SortContentsNew is RankContentsNew without the keys.
func (s *Service) SortContentsNew(ctx context.Context, contents []content.Item, community *content.Community, locale, order, viewer string) ([]content.Item, error) {
	ranked, err := s.RankContentsNew(ctx, contents, community, locale, order, viewer)
	if err != nil {
		return nil, err
	}
	return Items(ranked), nil
}

// SortContentsBest is RankContentsBest without the keys.
func (s *Service) SortContentsBest(ctx context.Context, contents []content.Item, community *content.Community, locale, order string) ([]content.Item, error) {
	ranked, err := s.RankContentsBest(ctx, contents, community, locale, order)
	if err != nil {
		return nil, err
	}
	return Items(ranked), nil
}

// NameLikePerfectMatchesSorting moves contents whose name nearly matches
// query to the front, keeping relative order otherwise.
func (s *Service) NameLikePerfectMatchesSorting(ctx context.Context, contents []content.Item, query string) (sorted []content.Item, err error) {
	ctx, end := s.begin(ctx, AlgorithmMatch, len(contents))
	defer func() { end(err) }()

	if len(contents) == 0 {
		return []content.Item{}, nil
	}
	query, err = validate.NameQuery(query)
	if err != nil {
		return nil, err
	}
	if _, err := s.prepare(contents, ""); err != nil {
		return []content.Item{}, err
	}

	sorted, promoted := PromoteMatches(contents, query, s.cfg)
	tracing.SetAttributes(ctx, attribute.Int("ranking.promoted", promoted))
	if s.metrics != nil {
		s.metrics.AddPromoted(promoted)
	}
	return sorted, nil
}

// GetContentQuality returns the unclamped quality score of one item
// relative to community.
func (s *Service) GetContentQuality(item content.Item, community *content.Community) (quality int, err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveRequest(AlgorithmQuality, 1, time.Since(start), err)
		}
	}()

	if err := content.Validate(item); err != nil {
		return 0, err
	}
	return Quality(item, community, s.now(), s.cfg)
}

// prepare parses the order and validates every item.
func (s *Service) prepare(contents []content.Item, order string) (Order, error) {
	dir, err := ParseOrder(order)
	if err != nil {
		return "", err
	}
	if err := content.ValidateAll(contents); err != nil {
		return "", err
	}
	return dir, nil
}

// begin opens a span for a ranking call and returns a function that closes
// it, records metrics and logs the outcome.
func (s *Service) begin(ctx context.Context, algorithm string, n int) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "ranking."+algorithm)
	tracing.SetAttributes(ctx, attribute.Int("ranking.items", n))

	return ctx, func(err error) {
		elapsed := time.Since(start)
		endSpan(err)
		if s.metrics != nil {
			s.metrics.ObserveRequest(algorithm, n, elapsed, err)
		}
		if err != nil {
			s.logger.Warn("ranking failed",
				"algorithm", algorithm,
				"items", n,
				"error", err)
			return
		}
		s.logger.Debug("ranking completed",
			"algorithm", algorithm,
			"items", n,
			"duration_ms", elapsed.Milliseconds())
	}
}
