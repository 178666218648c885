// Package runner executes the configured market crawls sequentially and
// aggregates their outcomes into a run summary with process exit semantics.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cnpulse/internal/crawler"
)

// Status is the terminal state of one market run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// MarketResult records the outcome of one market within a run.
type MarketResult struct {
	Market   string        `json:"market"`
	RunID    string        `json:"run_id"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Summary aggregates a full run across markets.
type Summary struct {
	RunID    string         `json:"run_id"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Results  []MarketResult `json:"results"`
}

// ExitCode maps the summary to the process exit code: 1 when any market
// failed, 0 when at least one completed, 2 when everything was skipped.
func (s *Summary) ExitCode() int {
	anyFailed, anyCompleted := false, false
	for _, res := range s.Results {
		switch res.Status {
		case StatusFailed:
			anyFailed = true
		case StatusCompleted:
			anyCompleted = true
		}
	}
	switch {
	case anyFailed:
		return 1
	case anyCompleted:
		return 0
	default:
		return 2
	}
}

// Runner drives market sources through one orchestrator. Markets run
// sequentially: the portals are rate-limited per host, and sequential runs
// keep the per-market logs readable.
type Runner struct {
	orch    *crawler.Orchestrator
	sources map[string]crawler.Source
	logger  *slog.Logger
}

// New builds a runner over the registered sources.
func New(orch *crawler.Orchestrator, sources []crawler.Source, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]crawler.Source, len(sources))
	for _, src := range sources {
		byName[src.Name()] = src
	}
	return &Runner{orch: orch, sources: byName, logger: logger}
}

// Run executes the requested markets in order. A market with no registered
// source is skipped; a cancelled context skips every remaining market. One
// market's failure never stops the others.
func (r *Runner) Run(ctx context.Context, markets []string) *Summary {
	summary := &Summary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	logger := r.logger.With(slog.String("run_id", summary.RunID))
	logger.Info("run starting", slog.Any("markets", markets))

	for _, market := range markets {
		res := MarketResult{Market: market, RunID: uuid.NewString()}

		src, ok := r.sources[market]
		switch {
		case !ok:
			res.Status = StatusSkipped
			res.Error = "no source registered"
			logger.Warn("market skipped", slog.String("market", market), slog.String("reason", res.Error))
		case ctx.Err() != nil:
			res.Status = StatusSkipped
			res.Error = ctx.Err().Error()
			logger.Warn("market skipped", slog.String("market", market), slog.String("reason", res.Error))
		default:
			start := time.Now()
			err := r.orch.Run(ctx, src)
			res.Duration = time.Since(start)
			if err != nil {
				res.Status = StatusFailed
				res.Error = err.Error()
				logger.Error("market failed",
					slog.String("market", market),
					slog.String("error", err.Error()),
					slog.Duration("duration", res.Duration))
			} else {
				res.Status = StatusCompleted
				logger.Info("market completed",
					slog.String("market", market),
					slog.Duration("duration", res.Duration))
			}
		}
		summary.Results = append(summary.Results, res)
	}

	summary.Finished = time.Now()
	logger.Info("run finished",
		slog.Int("markets", len(summary.Results)),
		slog.Int("exit_code", summary.ExitCode()),
		slog.Duration("duration", summary.Finished.Sub(summary.Started)))
	return summary
}
