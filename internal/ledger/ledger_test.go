package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeproof/internal/keystroke"
	"typeproof/internal/store"
)

func rawKey(seq int, tsMillis float64, char string) keystroke.RawEvent {
	return keystroke.RawEvent{
		"event_type":      "keydown",
		"key_code":        "65",
		"character":       char,
		"timestamp":       tsMillis,
		"sequence_number": float64(seq),
		"cursor_position": float64(seq),
	}
}

func rawBatch(n int) []keystroke.RawEvent {
	out := make([]keystroke.RawEvent, n)
	for i := range out {
		out[i] = rawKey(i, float64(i*100), "a")
	}
	return out
}

func fixedClock() time.Time {
	return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
}

func newTestIngestor(s store.EventStore) *Ingestor {
	cfg := DefaultIngestorConfig()
	cfg.Clock = fixedClock
	return NewIngestorWithConfig(s, cfg)
}

// =============================================================================
// Ingest
// =============================================================================

func TestIngestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	in := newTestIngestor(store.NewMemoryStore(store.Limits{}))

	first, err := in.Ingest(ctx, "doc", rawBatch(10))
	require.NoError(t, err)
	assert.Equal(t, 10, first.Appended)
	assert.Equal(t, 0, first.SkippedDuplicate)
	assert.NotEmpty(t, first.BatchID)

	second, err := in.Ingest(ctx, "doc", rawBatch(10))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Appended)
	assert.Equal(t, 10, second.SkippedDuplicate)
	assert.NotEqual(t, first.BatchID, second.BatchID)

	l, err := in.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 10, l.Len())
}

func TestIngestCountsRejections(t *testing.T) {
	ctx := context.Background()
	in := newTestIngestor(store.NewMemoryStore(store.Limits{}))

	raws := rawBatch(3)
	raws = append(raws,
		keystroke.RawEvent{"event_type": "keydown"},
		keystroke.RawEvent{"event_type": "wheel", "key_code": "1", "sequence_number": 9.0, "timestamp": 1.0},
	)

	res, err := in.Ingest(ctx, "doc", raws)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Appended)
	assert.Equal(t, 2, res.Rejected)
	assert.Equal(t, 5, res.Submitted())
}

func TestIngestTruncatesAtBatchCap(t *testing.T) {
	ctx := context.Background()
	in := newTestIngestor(store.NewMemoryStore(store.Limits{}))

	res, err := in.Ingest(ctx, "doc", rawBatch(DefaultMaxBatchSize+25))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxBatchSize, res.Appended)
	assert.Equal(t, 25, res.Truncated)
	assert.Equal(t, 0, res.Rejected)

	l, err := in.Load(ctx, "doc")
	require.NoError(t, err)
	ordered := l.Ordered()
	assert.Equal(t, uint64(DefaultMaxBatchSize-1), ordered[len(ordered)-1].Sequence)
}

func TestIngestCustomBatchCap(t *testing.T) {
	cfg := DefaultIngestorConfig()
	cfg.MaxBatchSize = 4
	in := NewIngestorWithConfig(store.NewMemoryStore(store.Limits{}), cfg)

	res, err := in.Ingest(context.Background(), "doc", rawBatch(10))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Appended)
	assert.Equal(t, 6, res.Truncated)
}

func TestIngestEmptyDocumentID(t *testing.T) {
	in := newTestIngestor(store.NewMemoryStore(store.Limits{}))
	_, err := in.Ingest(context.Background(), "", rawBatch(1))
	assert.ErrorIs(t, err, ErrEmptyDocumentID)
}

func TestIngestLedgerFull(t *testing.T) {
	in := newTestIngestor(store.NewMemoryStore(store.Limits{MaxEventsPerDocument: 5}))

	res, err := in.Ingest(context.Background(), "doc", rawBatch(8))
	assert.ErrorIs(t, err, store.ErrLedgerFull)
	assert.Equal(t, 5, res.Appended)
	assert.Equal(t, 3, res.Rejected)
}

type failingStore struct {
	store.EventStore
}

func (failingStore) Append(context.Context, store.Batch) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestIngestSurfacesStorageFailure(t *testing.T) {
	in := newTestIngestor(failingStore{store.NewMemoryStore(store.Limits{})})
	_, err := in.Ingest(context.Background(), "doc", rawBatch(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append batch")
}

func TestIngestRecordsBatchTime(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(store.Limits{})
	in := newTestIngestor(s)

	res, err := in.Ingest(ctx, "doc", rawBatch(2))
	require.NoError(t, err)

	batches, err := s.Batches(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, res.BatchID, batches[0].ID)
	assert.True(t, batches[0].ReceivedAt.Equal(fixedClock()))
}

// =============================================================================
// Ledger snapshot
// =============================================================================

func event(seq uint64, ts float64, typ keystroke.EventType) keystroke.Event {
	return keystroke.Event{Type: typ, KeyCode: "65", Timestamp: ts, Sequence: seq}
}

func TestOrderedSortsAndCollapsesDuplicates(t *testing.T) {
	l := New("doc", []keystroke.Event{
		event(3, 3, keystroke.KeyDown),
		event(1, 1, keystroke.KeyDown),
		event(3, 99, keystroke.KeyUp),
		event(2, 2, keystroke.KeyUp),
	})

	assert.Equal(t, 4, l.Len())
	ordered := l.Ordered()
	require.Len(t, ordered, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{ordered[0].Sequence, ordered[1].Sequence, ordered[2].Sequence})
	assert.Equal(t, float64(3), ordered[2].Timestamp, "first stored row wins")

	downs := l.KeyDowns()
	assert.Len(t, downs, 2)
}

func TestDigestIsOrderIndependent(t *testing.T) {
	a := New("doc", []keystroke.Event{event(1, 1, keystroke.KeyDown), event(2, 2, keystroke.KeyDown)})
	b := New("doc", []keystroke.Event{event(2, 2, keystroke.KeyDown), event(1, 1, keystroke.KeyDown)})
	c := New("doc", []keystroke.Event{event(1, 1, keystroke.KeyDown), event(2, 2.5, keystroke.KeyDown)})
	d := New("doc", []keystroke.Event{event(1, 1, keystroke.KeyDown), event(2, 2, keystroke.KeyDown), event(2, 2, keystroke.KeyDown)})

	assert.Equal(t, a.Digest(), b.Digest())
	assert.NotEqual(t, a.Digest(), c.Digest())
	assert.NotEqual(t, a.Digest(), d.Digest(), "duplicate rows change the fingerprint")
	assert.Len(t, a.Digest(), 64)
}

func TestEmptyLedger(t *testing.T) {
	l := New("doc", nil)
	assert.True(t, l.Empty())
	assert.Empty(t, l.Ordered())
	assert.NotEmpty(t, l.Digest())
}
