// Package store persists per-document keystroke ledgers.
//
// Every backend enforces the same contract: rows are append-only, and a
// (document_id, sequence_number) pair is stored at most once. A second record
// for an existing pair is dropped without error, which makes re-submitting a
// batch a no-op.
package store

import (
	"context"
	"errors"
	"time"

	"typeproof/internal/keystroke"
)

// ErrLedgerFull is returned when an append would exceed the configured
// per-document event limit. Events up to the limit are still stored.
var ErrLedgerFull = errors.New("ledger is full")

// Batch is one ingestion call's worth of validated events.
type Batch struct {
	DocumentID string
	ID         string
	ReceivedAt time.Time
	Events     []keystroke.Event
}

// BatchRecord summarizes a stored batch.
type BatchRecord struct {
	ID         string
	DocumentID string
	ReceivedAt time.Time
	Submitted  int
	Appended   int
}

// DocumentSummary describes one document's ledger.
type DocumentSummary struct {
	DocumentID string
	EventCount int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// EventStore is the storage contract for ledgers.
type EventStore interface {
	// Append stores events in the given order and returns how many rows
	// were inserted. Events whose sequence number already exists for the
	// document, in storage or earlier in the same batch, are skipped.
	Append(ctx context.Context, b Batch) (int, error)

	// Events returns a document's events in storage order.
	Events(ctx context.Context, documentID string) ([]keystroke.Event, error)

	// Count returns the number of stored events for a document.
	Count(ctx context.Context, documentID string) (int, error)

	// Batches returns a document's ingestion history, oldest first.
	Batches(ctx context.Context, documentID string) ([]BatchRecord, error)

	// Documents lists every document with at least one stored batch.
	Documents(ctx context.Context) ([]DocumentSummary, error)

	Close() error
}

// Limits bounds ledger growth. Zero means unlimited.
type Limits struct {
	MaxEventsPerDocument int
}

// remaining returns how many more events a document may hold, or -1 when
// unlimited.
func (l Limits) remaining(current int) int {
	if l.MaxEventsPerDocument <= 0 {
		return -1
	}
	if current >= l.MaxEventsPerDocument {
		return 0
	}
	return l.MaxEventsPerDocument - current
}
