// Package ranking scores and orders content items for display.
//
// Four orderings are provided, each computing one integer key per item into
// a parallel slice and stably sorting on it. Caller-owned items are never
// modified.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	cfg, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default ranking config", "error", err)
//	}
//
//	svc := ranking.NewService(ranking.ServiceConfig{
//		Ranking: cfg,
//		Tracker: tracker,
//		Metrics: metrics,
//	})
//
//	// Best first, relative to the viewer's community
//	ranked, err := svc.SortContentsBest(ctx, items, community, "fr", "DESC")
//
// Composite keys:
//
// Sub-scores are clamped before they are packed by positional weight, so a
// single integer comparison encodes a lexicographic priority. The "best" key
// is distance*10000 + date*1000 + upvotes and the "new" key is
// seen*1000 + quality.
//
// Calibration:
//
// Every weight, bucket boundary and clamp lives in Config. Partial JSON
// calibration files are merged over DefaultConfig at startup. See
// configs/ranking.calibration.json for the default configuration.
package ranking
