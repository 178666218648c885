package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"cnpulse/internal/pipeline"
	"cnpulse/internal/record"
)

// Emit delivers one canonical record to the run's collector. Sources may
// call it from any goroutine.
type Emit func(record.Record)

// Source is one market's crawl: discovery, detail fan-out and merging.
// Crawl returns an error only for discovery-phase failures, which are
// fatal for the market; individual detail failures are absorbed (the
// entity's facet fields stay null) and processing continues.
type Source interface {
	Name() string
	Crawl(ctx context.Context, emit Emit) error
}

// Options bounds a crawl run.
type Options struct {
	// Limit caps the number of entities processed, applied to the first N
	// in discovery order so limited runs stay reproducible. Zero means no
	// limit.
	Limit int

	// Codes bypasses discovery with an explicit entity-code list, for
	// markets that support it.
	Codes []string

	// Concurrency bounds the detail fan-out worker count.
	Concurrency int

	// SnapshotDate stamps every emitted record.
	SnapshotDate string
}

// Orchestrator runs one market source and funnels its records through the
// pipeline. The single collector goroutine is the only writer of the state
// store and the snapshot files.
type Orchestrator struct {
	pipe   *pipeline.Pipeline
	logger *slog.Logger
}

// NewOrchestrator wires a pipeline to crawl runs.
func NewOrchestrator(pipe *pipeline.Pipeline, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{pipe: pipe, logger: logger}
}

// Run crawls one source to completion. Already-flushed records stay valid
// when the context is cancelled mid-run; remaining detail fetches are
// abandoned.
func (o *Orchestrator) Run(ctx context.Context, src Source) error {
	records := make(chan record.Record, 256)

	done := make(chan error, 1)
	go func() {
		var firstErr error
		for rec := range records {
			if err := o.pipe.Process(rec); err != nil && firstErr == nil {
				firstErr = err
				o.logger.Error("pipeline processing failed",
					slog.String("market", src.Name()),
					slog.String("error", err.Error()))
			}
		}
		done <- firstErr
	}()

	crawlErr := src.Crawl(ctx, func(rec record.Record) {
		records <- rec
	})
	close(records)
	collectErr := <-done

	if crawlErr != nil {
		return fmt.Errorf("market %s: %w", src.Name(), crawlErr)
	}
	return collectErr
}

// limitRows applies the deterministic first-N limit to discovery rows.
func limitRows[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
