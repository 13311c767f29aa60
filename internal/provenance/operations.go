package provenance

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"typeproof/internal/cache"
	"typeproof/internal/forensics"
	"typeproof/internal/keystroke"
	"typeproof/internal/ledger"
	"typeproof/internal/logging"
	"typeproof/internal/metrics"
	"typeproof/internal/replay"
	"typeproof/internal/store"
	"typeproof/internal/timeline"
	"typeproof/internal/tracing"
	"typeproof/internal/verify"
)

// Ingest validates raws and appends them to the document's ledger. Cached
// reports for the document are dropped when anything was appended.
//
// With store.ErrLedgerFull the returned result still describes what was
// stored.
func (e *Engine) Ingest(ctx context.Context, documentID string, raws []keystroke.RawEvent) (ledger.IngestResult, error) {
	ctx, _ = logging.EnsureRequestID(ctx)
	start := e.clock()
	ctx, span := tracing.Start(ctx, e.tracer, "provenance.ingest",
		tracing.AttrDocumentID.String(documentID),
		tracing.AttrBatchSize.Int(len(raws)),
	)

	log := e.logger.WithContext(ctx).WithDocument(documentID)
	res, err := e.ingestor.Ingest(ctx, documentID, raws)
	defer func() { tracing.End(span, err) }()

	e.metrics.RecordIngest(res.Appended, res.SkippedDuplicate, res.Rejected, res.Truncated, e.clock().Sub(start))

	if err != nil && !errors.Is(err, store.ErrLedgerFull) {
		log.Error("ingest failed", "error", err)
		_ = e.audit.LogError(ctx, documentID, "ingest", err)
		return res, err
	}

	if res.Appended > 0 {
		if cerr := e.cache.InvalidateDocument(ctx, documentID); cerr != nil {
			log.Warn("report cache invalidation failed", "error", cerr)
		}
	}

	log.Info("batch ingested",
		"batch_id", res.BatchID,
		"appended", res.Appended,
		"skipped_duplicate", res.SkippedDuplicate,
		"rejected", res.Rejected,
		"truncated", res.Truncated,
	)
	if aerr := e.audit.LogIngest(ctx, documentID, res.Appended, res.SkippedDuplicate, res.Rejected, res.Truncated); aerr != nil {
		log.Warn("audit write failed", "error", aerr)
	}
	if err != nil {
		log.Warn("ledger is full", "error", err)
	}
	return res, err
}

// Snapshot loads the document's current ledger.
func (e *Engine) Snapshot(ctx context.Context, documentID string) (*ledger.Ledger, error) {
	return ledger.Load(ctx, e.store, documentID)
}

// Reconstruct replays the document's ledger into text.
func (e *Engine) Reconstruct(ctx context.Context, documentID string) (string, error) {
	ctx, span := tracing.Start(ctx, e.tracer, "provenance.reconstruct",
		tracing.AttrDocumentID.String(documentID))

	l, err := ledger.Load(ctx, e.store, documentID)
	tracing.End(span, err)
	if err != nil {
		return "", err
	}
	return replay.Reconstruct(l.Ordered()), nil
}

// ReplayStats replays the ledger and counts edits by kind.
func (e *Engine) ReplayStats(ctx context.Context, documentID string) (replay.Stats, error) {
	l, err := ledger.Load(ctx, e.store, documentID)
	if err != nil {
		return replay.Stats{}, err
	}
	return replay.Summarize(l.Ordered()), nil
}

// Verify builds a verification report for content against the document's
// ledger. An unknown document yields a report over an empty ledger.
//
// Concurrent calls for the same ledger snapshot and content share one
// computation and therefore one *verify.Report; callers must not mutate it.
func (e *Engine) Verify(ctx context.Context, documentID, content string) (*verify.Report, error) {
	ctx, _ = logging.EnsureRequestID(ctx)
	start := e.clock()
	ctx, span := tracing.Start(ctx, e.tracer, "provenance.verify",
		tracing.AttrDocumentID.String(documentID),
		tracing.AttrContentLength.Int(utf8.RuneCountInString(content)),
	)

	report, err := e.verify(ctx, documentID, content)
	if err == nil {
		span.SetAttributes(
			tracing.AttrStatus.String(string(report.Status())),
			tracing.AttrConfidence.Int(report.Confidence()),
		)
	}
	tracing.End(span, err)

	log := e.logger.WithContext(ctx).WithDocument(documentID)
	if err != nil {
		log.Error("verification failed", "error", err)
		_ = e.audit.LogError(ctx, documentID, "verify", err)
		return nil, err
	}

	e.metrics.RecordVerification(string(report.Status()), report.Confidence(), report.DocumentInfo.EventCount, e.clock().Sub(start))
	log.Info("document verified",
		"status", report.Status(),
		"confidence", report.Confidence(),
		"events", report.DocumentInfo.EventCount,
	)
	if aerr := e.audit.LogVerification(ctx, documentID, string(report.Status()), report.Confidence()); aerr != nil {
		log.Warn("audit write failed", "error", aerr)
	}
	return report, nil
}

func (e *Engine) verify(ctx context.Context, documentID, content string) (*verify.Report, error) {
	l, err := ledger.Load(ctx, e.store, documentID)
	if err != nil {
		return nil, err
	}
	key := cache.Key(l.Digest(), content)

	v, err, _ := e.inflight.Do(documentID+"|"+key, func() (any, error) {
		if r, ok := e.cached(ctx, documentID, key); ok {
			return r, nil
		}
		r, err := e.analyze(ctx, l, content)
		if err != nil {
			return nil, err
		}
		if serr := e.cache.Set(ctx, documentID, key, r); serr != nil {
			e.logger.WithContext(ctx).Warn("report cache store failed", "document_id", documentID, "error", serr)
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*verify.Report), nil
}

func (e *Engine) cached(ctx context.Context, documentID, key string) (*verify.Report, bool) {
	_, span := tracing.Start(ctx, e.tracer, "provenance.cache_lookup")
	defer span.End()

	r, err := e.cache.Get(ctx, documentID, key)
	switch {
	case err == nil:
		e.metrics.IncrementCacheLookup(metrics.CacheHit)
		span.SetAttributes(tracing.AttrCacheResult.String(metrics.CacheHit))
		return r, true
	case errors.Is(err, cache.ErrMiss):
		e.metrics.IncrementCacheLookup(metrics.CacheMiss)
		span.SetAttributes(tracing.AttrCacheResult.String(metrics.CacheMiss))
	default:
		e.metrics.IncrementCacheLookup(metrics.CacheErr)
		span.SetAttributes(tracing.AttrCacheResult.String(metrics.CacheErr))
		e.logger.WithContext(ctx).Warn("report cache lookup failed", "document_id", documentID, "error", err)
	}
	return nil, false
}

// analyze runs replay, integrity, authenticity and statistics over one
// snapshot concurrently and assembles the report.
func (e *Engine) analyze(ctx context.Context, l *ledger.Ledger, content string) (*verify.Report, error) {
	ctx, span := tracing.Start(ctx, e.tracer, "provenance.analyze",
		tracing.AttrEventCount.Int(l.Len()))

	var (
		reconstructed string
		ir            forensics.IntegrityReport
		as            forensics.AuthenticitySignals
		stats         verify.StatisticalAnalysis
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		reconstructed = replay.Reconstruct(l.Ordered())
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		ir = e.integrity.Check(l, content)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		as = e.analyzer.Analyze(l)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		stats = verify.Statistics(l)
		return nil
	})
	if err := g.Wait(); err != nil {
		tracing.End(span, err)
		return nil, fmt.Errorf("analyze ledger %s: %w", l.DocumentID(), err)
	}

	doc := verify.DocumentInfo{
		DocumentID:          l.DocumentID(),
		ContentLength:       utf8.RuneCountInString(content),
		EventCount:          l.Len(),
		ReconstructedLength: utf8.RuneCountInString(reconstructed),
		ReconstructionMatch: reconstructed == content,
	}
	if !l.Empty() {
		doc.LedgerDigest = l.Digest()
	}

	r := verify.Build(doc, ir, as, verify.Options{Statistics: &stats, Clock: e.clock})
	tracing.End(span, nil)
	return r, nil
}

// Timeline segments the document's ledger. Nil opts use the engine defaults.
func (e *Engine) Timeline(ctx context.Context, documentID string, opts *timeline.Options) (timeline.Result, error) {
	start := e.clock()
	ctx, span := tracing.Start(ctx, e.tracer, "provenance.timeline",
		tracing.AttrDocumentID.String(documentID))

	l, err := ledger.Load(ctx, e.store, documentID)
	if err != nil {
		tracing.End(span, err)
		return timeline.Result{}, err
	}

	o := e.timelineOpts
	if opts != nil {
		o = *opts
	}
	res := timeline.Segment(l.Ordered(), o)
	span.SetAttributes(tracing.AttrEventCount.Int(l.Len()))
	tracing.End(span, nil)

	e.metrics.ObserveTimelineLatency(e.clock().Sub(start))
	return res, nil
}

// Documents lists every document with stored events.
func (e *Engine) Documents(ctx context.Context) ([]store.DocumentSummary, error) {
	docs, err := e.store.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// History returns a document's ingestion batches, oldest first.
func (e *Engine) History(ctx context.Context, documentID string) ([]store.BatchRecord, error) {
	if documentID == "" {
		return nil, ledger.ErrEmptyDocumentID
	}
	batches, err := e.store.Batches(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list batches %s: %w", documentID, err)
	}
	return batches, nil
}
