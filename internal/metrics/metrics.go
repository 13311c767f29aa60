// Package metrics provides Prometheus metrics for the provenance engine.
//
// All recording methods are safe to call on a nil *Metrics, so components can
// run without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "typeproof"

// Ingest outcomes.
const (
	OutcomeAppended  = "appended"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeTruncated = "truncated"
)

// Cache lookup results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
	CacheErr  = "error"
)

// Metrics holds all engine metrics.
type Metrics struct {
	// Keystroke events handled by ingest, by outcome
	EventsIngested *prometheus.CounterVec

	IngestLatency prometheus.Histogram

	// Verification outcomes by status
	VerifyOutcome *prometheus.CounterVec

	VerifyLatency prometheus.Histogram

	VerifyConfidence prometheus.Histogram

	// Report cache lookups by result
	CacheLookups *prometheus.CounterVec

	TimelineLatency prometheus.Histogram

	LedgerEvents prometheus.Histogram
}

// New registers all metrics with reg under namespace. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	f := promauto.With(reg)

	return &Metrics{
		EventsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Keystroke events processed by ingest, by outcome",
		}, []string{"outcome"}),

		IngestLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of batch ingestion including persistence",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		VerifyOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Verification reports produced, by overall status",
		}, []string{"status"}),

		VerifyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verify_duration_seconds",
			Help:      "Duration of a full verification",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		VerifyConfidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verify_confidence",
			Help:      "Distribution of verification confidence levels",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_lookups_total",
			Help:      "Report cache lookups by result",
		}, []string{"result"}),

		TimelineLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "timeline_duration_seconds",
			Help:      "Duration of timeline segmentation",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		LedgerEvents: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_events",
			Help:      "Number of events in ledgers at verification time",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		}),
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordIngest records the per-outcome counts of one ingest call.
func (m *Metrics) RecordIngest(appended, duplicates, rejected, truncated int, d time.Duration) {
	if m == nil {
		return
	}
	m.EventsIngested.WithLabelValues(OutcomeAppended).Add(float64(appended))
	m.EventsIngested.WithLabelValues(OutcomeDuplicate).Add(float64(duplicates))
	m.EventsIngested.WithLabelValues(OutcomeRejected).Add(float64(rejected))
	m.EventsIngested.WithLabelValues(OutcomeTruncated).Add(float64(truncated))
	m.IngestLatency.Observe(d.Seconds())
}

// RecordVerification records a completed verification.
func (m *Metrics) RecordVerification(status string, confidence, events int, d time.Duration) {
	if m == nil {
		return
	}
	m.VerifyOutcome.WithLabelValues(status).Inc()
	m.VerifyConfidence.Observe(float64(confidence))
	m.LedgerEvents.Observe(float64(events))
	m.VerifyLatency.Observe(d.Seconds())
}

// IncrementCacheLookup records a report cache lookup.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// ObserveTimelineLatency records a segmentation duration.
func (m *Metrics) ObserveTimelineLatency(d time.Duration) {
	if m != nil {
		m.TimelineLatency.Observe(d.Seconds())
	}
}
