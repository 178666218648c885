// Package metrics exposes Prometheus counters for the snapshot pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline holds the counters a snapshot run reports. Label dimensions are
// kept small: record type for pipeline counters, market for fetch counters.
type Pipeline struct {
	RecordsExported   *prometheus.CounterVec
	RecordsSuppressed *prometheus.CounterVec
	FetchFailures     *prometheus.CounterVec
	DiscoveryFailures *prometheus.CounterVec
}

// NewPipeline registers the pipeline counters on reg. Pass a fresh
// prometheus.NewRegistry in tests to avoid duplicate registration.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	factory := promauto.With(reg)
	return &Pipeline{
		RecordsExported: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cnpulse",
			Name:      "records_exported_total",
			Help:      "Canonical records written to snapshot files.",
		}, []string{"record_type"}),
		RecordsSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cnpulse",
			Name:      "records_suppressed_total",
			Help:      "Records suppressed by dedupe as unchanged since the last snapshot.",
		}, []string{"record_type"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cnpulse",
			Name:      "detail_fetch_failures_total",
			Help:      "Per-entity detail fetches that failed and were absorbed.",
		}, []string{"market"}),
		DiscoveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cnpulse",
			Name:      "discovery_failures_total",
			Help:      "Listing-phase failures, fatal for the market run.",
		}, []string{"market"}),
	}
}
