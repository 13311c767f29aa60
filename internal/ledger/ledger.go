// Package ledger provides per-document keystroke ledger snapshots and the
// idempotent ingestion path that grows them.
package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"sync"

	"golang.org/x/crypto/blake2b"

	"typeproof/internal/keystroke"
)

// Ledger is an immutable snapshot of one document's stored events.
type Ledger struct {
	documentID string
	rows       []keystroke.Event

	once    sync.Once
	ordered []keystroke.Event
	digest  string
}

// New builds a snapshot from stored rows. rows is copied.
func New(documentID string, rows []keystroke.Event) *Ledger {
	cp := make([]keystroke.Event, len(rows))
	copy(cp, rows)
	return &Ledger{documentID: documentID, rows: cp}
}

// DocumentID returns the document the snapshot belongs to.
func (l *Ledger) DocumentID() string {
	return l.documentID
}

// All returns the stored rows as loaded, duplicates included.
func (l *Ledger) All() []keystroke.Event {
	return l.rows
}

// Len returns the number of stored rows.
func (l *Ledger) Len() int {
	return len(l.rows)
}

// Empty reports whether the ledger holds no events.
func (l *Ledger) Empty() bool {
	return len(l.rows) == 0
}

// Ordered returns events sorted by sequence number with repeated sequence
// numbers collapsed to the first stored row.
func (l *Ledger) Ordered() []keystroke.Event {
	l.build()
	return l.ordered
}

// KeyDowns returns the ordered KeyDown events.
func (l *Ledger) KeyDowns() []keystroke.Event {
	var out []keystroke.Event
	for _, ev := range l.Ordered() {
		if ev.Type == keystroke.KeyDown {
			out = append(out, ev)
		}
	}
	return out
}

// Digest is a hex BLAKE2b-256 fingerprint of the snapshot. Two snapshots
// with the same digest produce the same analysis results.
func (l *Ledger) Digest() string {
	l.build()
	return l.digest
}

func (l *Ledger) build() {
	l.once.Do(func() {
		sorted := make([]keystroke.Event, len(l.rows))
		copy(sorted, l.rows)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Sequence < sorted[j].Sequence
		})

		ordered := make([]keystroke.Event, 0, len(sorted))
		for i, ev := range sorted {
			if i > 0 && ev.Sequence == sorted[i-1].Sequence {
				continue
			}
			ordered = append(ordered, ev)
		}
		l.ordered = ordered
		l.digest = digest(ordered, len(l.rows))
	})
}

// digest covers the ordered events plus the raw row count, so a snapshot
// with extra duplicate rows fingerprints differently.
func digest(events []keystroke.Event, rows int) string {
	h, _ := blake2b.New256(nil)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(rows))
	h.Write(buf[:])
	writeString := func(s string) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}

	for _, ev := range events {
		binary.BigEndian.PutUint64(buf[:], ev.Sequence)
		h.Write(buf[:])
		writeString(string(ev.Type))
		writeString(ev.KeyCode)
		if ev.Character != nil {
			h.Write([]byte{1})
			writeString(*ev.Character)
		} else {
			h.Write([]byte{0})
		}
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(ev.Timestamp))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(ev.Cursor))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
