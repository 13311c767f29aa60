package forensics

import (
	"math/rand"

	"typeproof/internal/keystroke"
	"typeproof/internal/ledger"
)

// =============================================================================
// Test Data Generators for Forensics Package
// =============================================================================

// TestDataGenerator provides methods for generating realistic keystroke data.
type TestDataGenerator struct {
	rng *rand.Rand
}

// NewTestDataGenerator creates a generator with a seed.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// HumanIntervals draws n intervals in seconds from a typing mixture:
// 70% 150-400ms, 15% 80-150ms, 10% 400ms-1.2s, 5% 1.2-3s.
func (g *TestDataGenerator) HumanIntervals(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		lo, hi := 0.150, 0.400
		switch p := g.rng.Float64(); {
		case p < 0.70:
		case p < 0.85:
			lo, hi = 0.080, 0.150
		case p < 0.95:
			lo, hi = 0.400, 1.200
		default:
			lo, hi = 1.200, 3.000
		}
		out[i] = lo + g.rng.Float64()*(hi-lo)
	}
	return out
}

// ConstantIntervals returns n identical intervals.
func ConstantIntervals(n int, seconds float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = seconds
	}
	return out
}

// Timestamps accumulates intervals into absolute timestamps starting at 0.
func Timestamps(intervals []float64) []float64 {
	ts := make([]float64, len(intervals)+1)
	for i, iv := range intervals {
		ts[i+1] = ts[i] + iv
	}
	return ts
}

// KeyDownLedger builds a ledger of consecutive KeyDown events at ts.
func KeyDownLedger(ts []float64) *ledger.Ledger {
	events := make([]keystroke.Event, len(ts))
	for i, t := range ts {
		events[i] = keystroke.Event{
			Type:      keystroke.KeyDown,
			KeyCode:   "65",
			Timestamp: t,
			Sequence:  uint64(i + 1),
			Cursor:    uint32(i),
		}
	}
	return ledger.New("doc", events)
}

// SequenceLedger builds a ledger from sequence numbers with increasing
// timestamps.
func SequenceLedger(seqs ...uint64) *ledger.Ledger {
	events := make([]keystroke.Event, len(seqs))
	for i, s := range seqs {
		events[i] = keystroke.Event{
			Type:      keystroke.KeyDown,
			KeyCode:   "65",
			Timestamp: float64(i) * 0.2,
			Sequence:  s,
		}
	}
	return ledger.New("doc", events)
}
