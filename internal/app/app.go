// Package app assembles the snapshot-run components: state store, snapshot
// writer, pipeline, crawl client, market sources and the runner. Both the
// CLI and the control server execute runs through it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"cnpulse/internal/config"
	"cnpulse/internal/crawler"
	"cnpulse/internal/exporter"
	"cnpulse/internal/metrics"
	"cnpulse/internal/pipeline"
	"cnpulse/internal/runner"
	"cnpulse/internal/state"
)

// RunOverrides are per-run parameter overrides; zero values fall back to
// the configured defaults.
type RunOverrides struct {
	Markets      []string
	Limit        int
	Codes        []string
	SnapshotDate string
}

// ExecuteRun performs one full snapshot run and returns its summary.
// The metrics collectors are process-wide and must be created once by the
// caller; everything else is built fresh per run.
func ExecuteRun(ctx context.Context, cfg *config.Config, m *metrics.Pipeline, logger *slog.Logger, ov RunOverrides) (*runner.Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := cfg.Paths.EnsureDirs(); err != nil {
		return nil, err
	}

	date := ov.SnapshotDate
	if date == "" {
		date = cfg.Crawl.EffectiveSnapshotDate()
	}
	markets := ov.Markets
	if len(markets) == 0 {
		markets = cfg.Crawl.NormalizedMarkets()
	}
	limit := ov.Limit
	if limit == 0 {
		limit = cfg.Crawl.Limit
	}
	codes := ov.Codes
	if len(codes) == 0 {
		codes = cfg.Crawl.Codes
	}

	store, err := state.NewStore(cfg.Paths.StateDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	writer := exporter.NewSnapshotWriter(cfg.Paths.SnapshotsDir, date, logger)
	pipe := pipeline.New(store, writer, m, logger)

	client := crawler.NewClient(cfg.Crawl.HostDelay, cfg.Crawl.HTTPTimeout, logger)
	opts := crawler.Options{
		Limit:        limit,
		Codes:        codes,
		Concurrency:  cfg.Crawl.Concurrency,
		SnapshotDate: date,
	}
	sources := []crawler.Source{
		&crawler.CNInfoSource{Client: client, Opts: opts, Logger: logger, Metrics: m},
		&crawler.SSESource{Client: client, Opts: opts, Logger: logger, Metrics: m},
		&crawler.BSESource{Client: client, Opts: opts, Logger: logger, Metrics: m},
	}

	orch := crawler.NewOrchestrator(pipe, logger)
	summary := runner.New(orch, sources, logger).Run(ctx, markets)

	if err := pipe.Close(); err != nil {
		return summary, fmt.Errorf("failed to flush snapshot outputs: %w", err)
	}

	// Workbook mirror is a convenience artifact; its failure never fails
	// the run.
	if writer.Count() > 0 {
		if err := exporter.NewWorkbookWriter(logger).Mirror(writer.Dir()); err != nil {
			logger.Warn("workbook mirror failed", slog.String("error", err.Error()))
		}
	}
	return summary, nil
}
