// Package main is the entry point for rankctl, which orders content items
// read from documents or from Postgres.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/townhall/internal/config"
	"github.com/onnwee/townhall/internal/content"
	"github.com/onnwee/townhall/internal/health"
	"github.com/onnwee/townhall/internal/logging"
	"github.com/onnwee/townhall/internal/ranking"
	"github.com/onnwee/townhall/internal/store"
	"github.com/onnwee/townhall/internal/tracing"
	"github.com/onnwee/townhall/internal/tracking"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file")
	input := flag.String("input", "-", "documents file, - for stdin")
	format := flag.String("format", string(content.FormatJSON), "document format: json or cbor")
	source := flag.String("source", sourceDocuments, "item source: documents or postgres")
	kind := flag.String("kind", string(content.KindIssue), "content kind to load from postgres")
	limit := flag.Int("limit", store.DefaultLimit, "maximum items to load from postgres")
	community := flag.String("community", "", "reference community id")
	locale := flag.String("locale", "", "viewer locale")
	order := flag.String("order", string(ranking.Desc), "DESC or ASC")
	viewer := flag.String("viewer", "", "viewer id for seen counts")
	query := flag.String("query", "", "name-like query for match, or postgres name search")
	recordSeen := flag.Bool("record-seen", false, "record a seen event for every item ranked by new")
	metricsOut := flag.String("metrics-out", "", "write Prometheus metrics to this textfile")
	flag.Parse()

	if *help || flag.NArg() != 1 {
		fmt.Println("Townhall content ranking")
		fmt.Println()
		fmt.Println("Usage: rankctl [options] relevancy|new|best|match|quality")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		if *help {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		Command:     flag.Arg(0),
		Input:       *input,
		Format:      content.Format(*format),
		Source:      *source,
		Kind:        content.Kind(*kind),
		Limit:       *limit,
		CommunityID: *community,
		Locale:      *locale,
		Order:       *order,
		Viewer:      *viewer,
		Query:       *query,
		RecordSeen:  *recordSeen,
		MetricsOut:  *metricsOut,
	}
	if err := execute(ctx, cfg, opts, os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("rankctl failed", "command", opts.Command, "error", err)
		stop()
		os.Exit(1)
	}
}

// execute wires the backends described by cfg and runs one command.
func execute(ctx context.Context, cfg *config.Config, opts options, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "rankctl",
		Version:      version,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	rankingCfg, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("using default ranking config", "path", cfg.RankingCalibrationPath, "error", err)
	}

	checkers := make(map[string]health.Checker)

	var tracker interface {
		tracking.Tracker
		tracking.Recorder
	}
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(redisOpts)
		defer client.Close()
		checkers["redis"] = health.NewRedisChecker(client)
		tracker = tracking.NewRedisTracker(client, cfg.TrackingTTL)
	} else {
		tracker = tracking.NewInMemoryTracker()
	}

	var repo store.Repository
	if opts.Source == sourcePostgres {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for source %q", sourcePostgres)
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		checkers["postgres"] = health.NewDBChecker(db)
		repo = store.NewPostgresRepository(db)
	}

	if err := health.CheckAll(ctx, logger, checkers); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := ranking.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	svc := ranking.NewService(ranking.ServiceConfig{
		Ranking: rankingCfg,
		Tracker: tracker,
		Metrics: metrics,
		Logger:  logger,
	})

	req, err := load(ctx, opts, stdin, repo)
	if err != nil {
		return err
	}

	out, err := run(ctx, svc, opts.Command, req)
	if err != nil {
		return err
	}

	if opts.RecordSeen && opts.Command == commandNew {
		if err := recordSeen(ctx, tracker, req.Viewer, out.Results); err != nil {
			return err
		}
	}

	if opts.MetricsOut != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsOut, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	return writeOutput(stdout, out)
}
