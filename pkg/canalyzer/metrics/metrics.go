// Package metrics exposes Prometheus instrumentation for fit passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canalyzer_records_total",
			Help: "Raw records read during fit passes, by outcome",
		},
		[]string{"outcome"}, // "committed", "skipped", "failed"
	)

	ContentsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canalyzer_contents_committed_total",
			Help: "Contents committed per writer backend",
		},
		[]string{"backend"},
	)

	Warnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canalyzer_warnings_total",
			Help: "Recovered per-record problems, by kind",
		},
		[]string{"kind"}, // "missing_field", "missing_id", "duplicate_id"
	)

	RefactorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canalyzer_refactor_duration_seconds",
			Help:    "Duration of collection-based refactor passes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"field", "technique"},
	)

	FitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canalyzer_fit_duration_seconds",
			Help:    "Duration of whole fit passes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"status"}, // "success", "error"
	)
)

// RecordRefactor observes one refactor pass.
func RecordRefactor(field, technique string, d time.Duration) {
	RefactorDuration.WithLabelValues(field, technique).Observe(d.Seconds())
}

// RecordFit observes one fit pass.
func RecordFit(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	FitDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordCommit counts one committed content on a backend.
func RecordCommit(backend string) {
	ContentsCommitted.WithLabelValues(backend).Inc()
}

// RecordWarning counts one recovered per-record problem.
func RecordWarning(kind string) {
	Warnings.WithLabelValues(kind).Inc()
}

// RecordRecord counts one raw record by outcome.
func RecordRecord(outcome string) {
	RecordsProcessed.WithLabelValues(outcome).Inc()
}
