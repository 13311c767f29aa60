package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"typeproof/internal/keystroke"
	"typeproof/internal/logging"
	"typeproof/internal/store"
)

// DefaultMaxBatchSize is the per-call ingestion cap.
const DefaultMaxBatchSize = 5000

// ErrEmptyDocumentID is returned when an operation is given no document.
var ErrEmptyDocumentID = errors.New("document id is empty")

// IngestResult counts what happened to a submitted batch.
type IngestResult struct {
	BatchID          string `json:"batch_id"`
	Appended         int    `json:"appended"`
	SkippedDuplicate int    `json:"skipped_duplicate"`
	Rejected         int    `json:"rejected"`
	Truncated        int    `json:"truncated"`
}

// Submitted is the number of records considered after truncation.
func (r IngestResult) Submitted() int {
	return r.Appended + r.SkippedDuplicate + r.Rejected
}

// IngestorConfig configures an Ingestor.
type IngestorConfig struct {
	// MaxBatchSize caps how many records one call considers. Records past
	// the cap are discarded without being validated.
	MaxBatchSize int

	Logger *logging.Logger
	Clock  func() time.Time
}

// DefaultIngestorConfig returns the standard ingestion limits.
func DefaultIngestorConfig() IngestorConfig {
	return IngestorConfig{
		MaxBatchSize: DefaultMaxBatchSize,
		Logger:       logging.Discard(),
		Clock:        time.Now,
	}
}

// Ingestor validates raw batches and appends them through a store.
type Ingestor struct {
	store store.EventStore
	cfg   IngestorConfig
}

// NewIngestor creates an Ingestor with default limits.
func NewIngestor(s store.EventStore) *Ingestor {
	return NewIngestorWithConfig(s, DefaultIngestorConfig())
}

// NewIngestorWithConfig creates an Ingestor with custom limits.
func NewIngestorWithConfig(s store.EventStore, cfg IngestorConfig) *Ingestor {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Ingestor{store: s, cfg: cfg}
}

// Ingest normalizes raws and appends the valid ones.
//
// Malformed records are counted in Rejected and never fail the call. A
// returned error means storage failed; with store.ErrLedgerFull the result
// still reflects what was stored.
func (in *Ingestor) Ingest(ctx context.Context, documentID string, raws []keystroke.RawEvent) (IngestResult, error) {
	res := IngestResult{BatchID: uuid.NewString()}
	if documentID == "" {
		return res, ErrEmptyDocumentID
	}
	log := in.cfg.Logger.WithContext(ctx).WithDocument(documentID)

	if len(raws) > in.cfg.MaxBatchSize {
		res.Truncated = len(raws) - in.cfg.MaxBatchSize
		raws = raws[:in.cfg.MaxBatchSize]
	}

	valid := make([]keystroke.Event, 0, len(raws))
	for i, raw := range raws {
		ev, err := keystroke.Normalize(raw)
		if err != nil {
			res.Rejected++
			log.Debug("event rejected", "index", i, "reason", err.Error())
			continue
		}
		valid = append(valid, ev)
	}

	if len(valid) == 0 {
		return res, nil
	}

	appended, err := in.store.Append(ctx, store.Batch{
		DocumentID: documentID,
		ID:         res.BatchID,
		ReceivedAt: in.cfg.Clock().UTC(),
		Events:     valid,
	})
	if err != nil && !errors.Is(err, store.ErrLedgerFull) {
		return res, fmt.Errorf("append batch: %w", err)
	}

	res.Appended = appended
	if errors.Is(err, store.ErrLedgerFull) {
		// A full ledger does not report which records were duplicates.
		res.Rejected += len(valid) - appended
		return res, err
	}
	res.SkippedDuplicate = len(valid) - appended
	return res, nil
}

// Load reads a document's snapshot from the store.
func (in *Ingestor) Load(ctx context.Context, documentID string) (*Ledger, error) {
	return Load(ctx, in.store, documentID)
}

// Load reads a document's snapshot from s.
func Load(ctx context.Context, s store.EventStore, documentID string) (*Ledger, error) {
	if documentID == "" {
		return nil, ErrEmptyDocumentID
	}
	rows, err := s.Events(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", documentID, err)
	}
	return New(documentID, rows), nil
}
