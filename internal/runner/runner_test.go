package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cnpulse/internal/crawler"
	"cnpulse/internal/exporter"
	"cnpulse/internal/metrics"
	"cnpulse/internal/pipeline"
	"cnpulse/internal/record"
	"cnpulse/internal/state"
)

type fakeSource struct {
	name string
	err  error
	emit bool
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Crawl(ctx context.Context, emit crawler.Emit) error {
	if f.emit {
		rec := record.New(record.TypeIssuer)
		rec.Fields["issuer_code"] = f.name + "-0001"
		rec.Fields["snapshot_date"] = "2026-08-28"
		emit(rec)
	}
	return f.err
}

func newRunner(t *testing.T, sources ...crawler.Source) *Runner {
	t.Helper()
	store, err := state.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	writer := exporter.NewSnapshotWriter(t.TempDir(), "2026-08-28", nil)
	pipe := pipeline.New(store, writer, metrics.NewPipeline(prometheus.NewRegistry()), nil)
	t.Cleanup(func() { _ = pipe.Close() })
	return New(crawler.NewOrchestrator(pipe, nil), sources, nil)
}

func TestRun_MixedOutcomes(t *testing.T) {
	r := newRunner(t,
		&fakeSource{name: "cninfo", emit: true},
		&fakeSource{name: "sse", err: errors.New("discovery: listing unavailable")},
	)

	summary := r.Run(context.Background(), []string{"cninfo", "sse", "bse"})
	require.Len(t, summary.Results, 3)

	assert.Equal(t, StatusCompleted, summary.Results[0].Status)
	assert.Equal(t, StatusFailed, summary.Results[1].Status)
	assert.Contains(t, summary.Results[1].Error, "listing unavailable")
	assert.Equal(t, StatusSkipped, summary.Results[2].Status)

	// Any failure dominates the exit code.
	assert.Equal(t, 1, summary.ExitCode())
	assert.NotEmpty(t, summary.RunID)
}

func TestRun_OneFailureDoesNotStopOthers(t *testing.T) {
	r := newRunner(t,
		&fakeSource{name: "sse", err: errors.New("boom")},
		&fakeSource{name: "bse", emit: true},
	)

	summary := r.Run(context.Background(), []string{"sse", "bse"})
	assert.Equal(t, StatusFailed, summary.Results[0].Status)
	assert.Equal(t, StatusCompleted, summary.Results[1].Status)
}

func TestExitCode_Semantics(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     int
	}{
		{"all completed", []Status{StatusCompleted, StatusCompleted}, 0},
		{"partial success", []Status{StatusCompleted, StatusSkipped}, 0},
		{"any failed", []Status{StatusCompleted, StatusFailed}, 1},
		{"all skipped", []Status{StatusSkipped, StatusSkipped}, 2},
		{"empty run", nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Summary{}
			for _, st := range tt.statuses {
				s.Results = append(s.Results, MarketResult{Status: st})
			}
			assert.Equal(t, tt.want, s.ExitCode())
		})
	}
}

func TestRun_CancelledContextSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(t, &fakeSource{name: "cninfo", emit: true})
	summary := r.Run(ctx, []string{"cninfo"})

	require.Len(t, summary.Results, 1)
	assert.Equal(t, StatusSkipped, summary.Results[0].Status)
	assert.Equal(t, 2, summary.ExitCode())
}
