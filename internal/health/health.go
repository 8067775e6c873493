// Package health checks the external dependencies a command needs before it
// starts ranking.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// DefaultTimeout bounds each individual check.
const DefaultTimeout = 3 * time.Second

// ErrUnhealthy is wrapped by CheckAll when at least one dependency fails.
var ErrUnhealthy = errors.New("dependency unhealthy")

// Checker checks one dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckAll runs every checker in name order, each under its own timeout, and
// returns every failure joined under ErrUnhealthy.
func CheckAll(ctx context.Context, logger *slog.Logger, checkers map[string]Checker) error {
	if logger == nil {
		logger = slog.Default()
	}

	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		start := time.Now()
		err := checkers[name].HealthCheck(checkCtx)
		cancel()

		if err != nil {
			logger.Error("dependency check failed", "dependency", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		logger.Debug("dependency healthy", "dependency", name, "latency", time.Since(start))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrUnhealthy, errors.Join(errs...))
	}
	return nil
}
