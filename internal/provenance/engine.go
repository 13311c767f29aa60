// Package provenance is the engine facade: it ingests keystroke batches into
// a store and derives reconstructions, verification reports and timelines
// from ledger snapshots.
//
// Derived results are pure functions of a snapshot. Verification reports are
// memoized in a ReportCache keyed by the ledger digest and the submitted
// content, and concurrent identical verifications share one computation.
package provenance

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"typeproof/internal/cache"
	"typeproof/internal/forensics"
	"typeproof/internal/ledger"
	"typeproof/internal/logging"
	"typeproof/internal/metrics"
	"typeproof/internal/store"
	"typeproof/internal/timeline"
	"typeproof/internal/tracing"
)

// Engine orchestrates ingestion and analysis for one store.
type Engine struct {
	store    store.EventStore
	ingestor *ledger.Ingestor

	logger  *logging.Logger
	audit   *logging.AuditLogger
	metrics *metrics.Metrics
	cache   cache.ReportCache
	tracer  trace.Tracer
	clock   func() time.Time

	thresholds   forensics.Thresholds
	maxBatchSize int
	timelineOpts timeline.Options

	integrity *forensics.IntegrityChecker
	analyzer  *forensics.Analyzer

	inflight singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the operational logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithAuditLogger records ingestions and verifications to an audit log.
func WithAuditLogger(a *logging.AuditLogger) Option {
	return func(e *Engine) {
		e.audit = a
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithCache sets the report cache. Nil disables caching.
func WithCache(c cache.ReportCache) Option {
	return func(e *Engine) {
		if c == nil {
			c = cache.Nop{}
		}
		e.cache = c
	}
}

// WithThresholds overrides the forensic thresholds.
func WithThresholds(th forensics.Thresholds) Option {
	return func(e *Engine) {
		e.thresholds = th
	}
}

// WithMaxBatchSize overrides the per-call ingestion cap.
func WithMaxBatchSize(n int) Option {
	return func(e *Engine) {
		e.maxBatchSize = n
	}
}

// WithTimelineOptions sets the defaults used by Timeline when the caller
// passes nil options.
func WithTimelineOptions(o timeline.Options) Option {
	return func(e *Engine) {
		e.timelineOpts = o
	}
}

// WithClock overrides the time source for batch stamps and reports.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.clock = now
		}
	}
}

// WithTracerProvider sets where spans go. The global provider is used by
// default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tracing.Tracer(tp)
	}
}

// New creates an Engine over s.
func New(s store.EventStore, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		logger:       logging.Discard(),
		cache:        cache.Nop{},
		clock:        time.Now,
		thresholds:   forensics.DefaultThresholds(),
		maxBatchSize: ledger.DefaultMaxBatchSize,
		timelineOpts: timeline.DefaultOptions(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.tracer == nil {
		e.tracer = tracing.Tracer(nil)
	}
	e.logger = e.logger.WithComponent("provenance")

	e.ingestor = ledger.NewIngestorWithConfig(s, ledger.IngestorConfig{
		MaxBatchSize: e.maxBatchSize,
		Logger:       e.logger,
		Clock:        e.clock,
	})
	e.integrity = forensics.NewIntegrityCheckerWithThresholds(e.thresholds)
	e.analyzer = forensics.NewAnalyzerWithThresholds(e.thresholds)
	return e
}

// Close releases the store and the audit log.
func (e *Engine) Close() error {
	var firstErr error
	if err := e.audit.Close(); err != nil {
		firstErr = err
	}
	if err := e.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
