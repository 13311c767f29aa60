package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"typeproof/internal/keystroke"
)

func ev(seq uint64, ts float64, char string) keystroke.Event {
	e := keystroke.Event{
		Type:      keystroke.KeyDown,
		KeyCode:   "65",
		Timestamp: ts,
		Unit:      keystroke.UnitEpochSeconds,
		Sequence:  seq,
		Cursor:    uint32(seq),
	}
	if char != "" {
		e.Character = &char
	}
	return e
}

func batch(doc, id string, events ...keystroke.Event) Batch {
	return Batch{
		DocumentID: doc,
		ID:         id,
		ReceivedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Events:     events,
	}
}

// runStoreContract exercises the EventStore contract against a backend.
func runStoreContract(t *testing.T, open func(t *testing.T, limits Limits) EventStore) {
	t.Run("AppendAndRead", func(t *testing.T) {
		s := open(t, Limits{})
		ctx := context.Background()

		n, err := s.Append(ctx, batch("doc", "b1", ev(2, 10.5, "b"), ev(1, 10.0, "a"), ev(3, 11.0, "")))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if n != 3 {
			t.Fatalf("expected 3 appended, got %d", n)
		}

		events, err := s.Events(ctx, "doc")
		if err != nil {
			t.Fatalf("Events failed: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("expected 3 events, got %d", len(events))
		}
		// Storage order, not sequence order.
		if events[0].Sequence != 2 || events[1].Sequence != 1 {
			t.Errorf("unexpected storage order: %d, %d", events[0].Sequence, events[1].Sequence)
		}
		if events[0].Char() != "b" || events[2].Character != nil {
			t.Errorf("character round trip failed: %q %v", events[0].Char(), events[2].Character)
		}
		if events[1].Timestamp != 10.0 || events[1].Unit != keystroke.UnitEpochSeconds || events[1].Cursor != 1 {
			t.Errorf("field round trip failed: %+v", events[1])
		}
	})

	t.Run("IdempotentResubmission", func(t *testing.T) {
		s := open(t, Limits{})
		ctx := context.Background()

		b := batch("doc", "b1", ev(1, 1, "a"), ev(2, 2, "b"))
		if _, err := s.Append(ctx, b); err != nil {
			t.Fatalf("first Append failed: %v", err)
		}
		b.ID = "b2"
		n, err := s.Append(ctx, b)
		if err != nil {
			t.Fatalf("second Append failed: %v", err)
		}
		if n != 0 {
			t.Errorf("resubmission appended %d events", n)
		}
		count, _ := s.Count(ctx, "doc")
		if count != 2 {
			t.Errorf("expected 2 stored events, got %d", count)
		}
	})

	t.Run("FirstOccurrenceWinsWithinBatch", func(t *testing.T) {
		s := open(t, Limits{})
		ctx := context.Background()

		n, err := s.Append(ctx, batch("doc", "b1", ev(5, 1, "x"), ev(5, 2, "y")))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 appended, got %d", n)
		}
		events, _ := s.Events(ctx, "doc")
		if len(events) != 1 || events[0].Char() != "x" {
			t.Errorf("expected first record to win, got %+v", events)
		}
	})

	t.Run("DocumentsAreIsolated", func(t *testing.T) {
		s := open(t, Limits{})
		ctx := context.Background()

		s.Append(ctx, batch("a", "b1", ev(1, 1, "a")))
		s.Append(ctx, batch("b", "b2", ev(1, 1, "a"), ev(2, 2, "b")))

		docs, err := s.Documents(ctx)
		if err != nil {
			t.Fatalf("Documents failed: %v", err)
		}
		if len(docs) != 2 || docs[0].DocumentID != "a" || docs[1].EventCount != 2 {
			t.Errorf("unexpected documents: %+v", docs)
		}

		events, _ := s.Events(ctx, "missing")
		if len(events) != 0 {
			t.Errorf("unknown document should be empty, got %d", len(events))
		}
	})

	t.Run("BatchHistory", func(t *testing.T) {
		s := open(t, Limits{})
		ctx := context.Background()

		s.Append(ctx, batch("doc", "b1", ev(1, 1, "a"), ev(2, 2, "b")))
		s.Append(ctx, batch("doc", "b2", ev(2, 2, "b"), ev(3, 3, "c")))

		batches, err := s.Batches(ctx, "doc")
		if err != nil {
			t.Fatalf("Batches failed: %v", err)
		}
		if len(batches) != 2 {
			t.Fatalf("expected 2 batches, got %d", len(batches))
		}
		if batches[1].ID != "b2" || batches[1].Submitted != 2 || batches[1].Appended != 1 {
			t.Errorf("unexpected batch record: %+v", batches[1])
		}
		if !batches[0].ReceivedAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
			t.Errorf("received_at round trip failed: %v", batches[0].ReceivedAt)
		}
	})

	t.Run("LedgerLimit", func(t *testing.T) {
		s := open(t, Limits{MaxEventsPerDocument: 3})
		ctx := context.Background()

		n, err := s.Append(ctx, batch("doc", "b1", ev(1, 1, ""), ev(2, 2, "")))
		if err != nil || n != 2 {
			t.Fatalf("Append = %d, %v", n, err)
		}
		n, err = s.Append(ctx, batch("doc", "b2", ev(2, 2, ""), ev(3, 3, ""), ev(4, 4, "")))
		if !errors.Is(err, ErrLedgerFull) {
			t.Fatalf("expected ErrLedgerFull, got %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 appended before the limit, got %d", n)
		}
		count, _ := s.Count(ctx, "doc")
		if count != 3 {
			t.Errorf("expected 3 stored events, got %d", count)
		}

		// Resubmitting stored events is still a no-op, not an error.
		n, err = s.Append(ctx, batch("doc", "b3", ev(1, 1, "")))
		if err != nil || n != 0 {
			t.Errorf("duplicate at limit = %d, %v", n, err)
		}
	})

	t.Run("ConcurrentAppendsConverge", func(t *testing.T) {
		s := open(t, Limits{})
		ctx := context.Background()

		events := make([]keystroke.Event, 50)
		for i := range events {
			events[i] = ev(uint64(i), float64(i), "k")
		}

		var wg sync.WaitGroup
		totals := make([]int, 4)
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				n, err := s.Append(ctx, batch("doc", fmt.Sprintf("w%d", w), events...))
				if err != nil {
					t.Errorf("worker %d: %v", w, err)
				}
				totals[w] = n
			}(w)
		}
		wg.Wait()

		sum := 0
		for _, n := range totals {
			sum += n
		}
		if sum != 50 {
			t.Errorf("expected 50 appended across workers, got %d", sum)
		}
		count, _ := s.Count(ctx, "doc")
		if count != 50 {
			t.Errorf("expected 50 stored, got %d", count)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, limits Limits) EventStore {
		return NewMemoryStore(limits)
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, limits Limits) EventStore {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"), limits)
		if err != nil {
			t.Fatalf("OpenSQLite failed: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestOpenSQLiteCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "ledger.db")
	s, err := OpenSQLite(dbPath, Limits{})
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()

	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != len(sqliteMigrations) {
		t.Errorf("expected schema version %d, got %d", len(sqliteMigrations), v)
	}
}

func TestOpenSQLiteReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	s, err := OpenSQLite(dbPath, Limits{})
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	s.Append(context.Background(), batch("doc", "b1", ev(1, 1, "a")))
	s.Close()

	s, err = OpenSQLite(dbPath, Limits{})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	count, _ := s.Count(context.Background(), "doc")
	if count != 1 {
		t.Errorf("expected 1 event after reopen, got %d", count)
	}
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	s := NewMemoryStore(Limits{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Append(ctx, batch("doc", "b1", ev(1, 1, ""))); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
