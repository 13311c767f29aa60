package store

import (
	"context"
	"sort"
	"sync"

	"typeproof/internal/keystroke"
)

type memoryLedger struct {
	events  []keystroke.Event
	seen    map[uint64]struct{}
	batches []BatchRecord
}

// MemoryStore is an in-process EventStore. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	ledgers map[string]*memoryLedger
	limits  Limits
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(limits Limits) *MemoryStore {
	return &MemoryStore{
		ledgers: make(map[string]*memoryLedger),
		limits:  limits,
	}
}

func (s *MemoryStore) Append(ctx context.Context, b Batch) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[b.DocumentID]
	if !ok {
		l = &memoryLedger{seen: make(map[uint64]struct{})}
		s.ledgers[b.DocumentID] = l
	}

	room := s.limits.remaining(len(l.events))
	appended := 0
	var err error
	for _, ev := range b.Events {
		if _, dup := l.seen[ev.Sequence]; dup {
			continue
		}
		if room == 0 {
			err = ErrLedgerFull
			break
		}
		l.seen[ev.Sequence] = struct{}{}
		l.events = append(l.events, ev)
		appended++
		if room > 0 {
			room--
		}
	}

	l.batches = append(l.batches, BatchRecord{
		ID:         b.ID,
		DocumentID: b.DocumentID,
		ReceivedAt: b.ReceivedAt,
		Submitted:  len(b.Events),
		Appended:   appended,
	})
	return appended, err
}

func (s *MemoryStore) Events(ctx context.Context, documentID string) ([]keystroke.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[documentID]
	if !ok {
		return nil, nil
	}
	out := make([]keystroke.Event, len(l.events))
	copy(out, l.events)
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.ledgers[documentID]; ok {
		return len(l.events), nil
	}
	return 0, nil
}

func (s *MemoryStore) Batches(ctx context.Context, documentID string) ([]BatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[documentID]
	if !ok {
		return nil, nil
	}
	out := make([]BatchRecord, len(l.batches))
	copy(out, l.batches)
	return out, nil
}

func (s *MemoryStore) Documents(ctx context.Context) ([]DocumentSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DocumentSummary, 0, len(s.ledgers))
	for id, l := range s.ledgers {
		sum := DocumentSummary{DocumentID: id, EventCount: len(l.events)}
		if n := len(l.batches); n > 0 {
			sum.FirstSeen = l.batches[0].ReceivedAt
			sum.LastSeen = l.batches[n-1].ReceivedAt
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
