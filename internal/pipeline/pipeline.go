// Package pipeline runs each canonical record through the fixed stage
// order Normalize -> Dedupe -> QA -> Export.
//
// Dedupe runs after full normalization so hash comparisons are insensitive
// to cosmetic raw-payload differences that normalize to the same canonical
// value. A suppressed duplicate is control flow, not an error: it is
// counted and dropped.
package pipeline

import (
	"fmt"
	"log/slog"

	"cnpulse/internal/exporter"
	"cnpulse/internal/metrics"
	"cnpulse/internal/normalize"
	"cnpulse/internal/parse"
	"cnpulse/internal/record"
	"cnpulse/internal/state"
)

// Pipeline owns the state store consultation and the snapshot writer for
// one run. It is fed from a single goroutine (the crawl collector), which
// is what makes the lock-free state store safe.
type Pipeline struct {
	store      *state.Store
	writer     *exporter.SnapshotWriter
	metrics    *metrics.Pipeline
	logger     *slog.Logger
	exported   map[record.Type]int
	suppressed map[record.Type]int
}

// New assembles a pipeline. metrics may be nil when no registry is wired.
func New(store *state.Store, writer *exporter.SnapshotWriter, m *metrics.Pipeline, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:      store,
		writer:     writer,
		metrics:    m,
		logger:     logger,
		exported:   make(map[record.Type]int),
		suppressed: make(map[record.Type]int),
	}
}

// Process runs one record through all stages. It returns an error only for
// real export failures (I/O); suppression and QA findings are absorbed.
func (p *Pipeline) Process(rec record.Record) error {
	p.normalizeNames(rec)

	key := rec.Key()
	changed, err := p.store.PutIfChanged(key, rec.Fields)
	if err != nil {
		return fmt.Errorf("state update for %s: %w", key, err)
	}
	if !changed {
		p.suppressed[rec.Type]++
		if p.metrics != nil {
			p.metrics.RecordsSuppressed.WithLabelValues(string(rec.Type)).Inc()
		}
		return nil
	}

	// QA stage: count and flag incomplete audit fields.
	if parse.String(rec.Fields["snapshot_date"]) == "" {
		p.logger.Warn("record missing snapshot_date",
			slog.String("record_type", string(rec.Type)),
			slog.String("key", key))
	}

	if err := p.writer.Write(rec); err != nil {
		return err
	}
	p.exported[rec.Type]++
	if p.metrics != nil {
		p.metrics.RecordsExported.WithLabelValues(string(rec.Type)).Inc()
	}
	return nil
}

// normalizeNames applies the script-specific company-name cleanup to the
// name-bearing fields before the record is hashed.
func (p *Pipeline) normalizeNames(rec record.Record) {
	for _, field := range []string{"company_name_ch"} {
		if s := parse.String(rec.Fields[field]); s != "" {
			rec.Fields[field] = normalize.CompanyNameCN(s)
		}
	}
	for _, field := range []string{"company_name_en"} {
		if s := parse.String(rec.Fields[field]); s != "" {
			rec.Fields[field] = normalize.CompanyNameEN(s)
		}
	}
}

// Exported returns per-type exported row counts for this run.
func (p *Pipeline) Exported() map[record.Type]int {
	return p.exported
}

// Suppressed returns per-type dedupe suppression counts for this run.
func (p *Pipeline) Suppressed() map[record.Type]int {
	return p.suppressed
}

// Close flushes the snapshot outputs and logs the QA summary. Call exactly
// once at the end of a run, including on error paths.
func (p *Pipeline) Close() error {
	for t, n := range p.exported {
		p.logger.Info("QA counts",
			slog.String("record_type", string(t)),
			slog.Int("exported", n),
			slog.Int("suppressed", p.suppressed[t]))
	}
	return p.writer.Close()
}
