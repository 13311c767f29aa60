package forensics

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"typeproof/internal/ledger"
)

// IntegrityChecker runs the structural checks over a ledger snapshot.
type IntegrityChecker struct {
	th Thresholds
}

// NewIntegrityChecker returns a checker using DefaultThresholds.
func NewIntegrityChecker() *IntegrityChecker {
	return &IntegrityChecker{th: DefaultThresholds()}
}

// NewIntegrityCheckerWithThresholds returns a checker using th.
func NewIntegrityCheckerWithThresholds(th Thresholds) *IntegrityChecker {
	return &IntegrityChecker{th: th}
}

// Check runs all four checks. content is the stored document text; only its
// length in runes is used.
func (c *IntegrityChecker) Check(l *ledger.Ledger, content string) IntegrityReport {
	return c.CheckLength(l, utf8.RuneCountInString(content))
}

// CheckLength is Check with a precomputed content length in characters.
func (c *IntegrityChecker) CheckLength(l *ledger.Ledger, contentLength int) IntegrityReport {
	return IntegrityReport{
		SequenceIntegrity:   c.sequence(l),
		TemporalConsistency: c.temporal(l),
		DataCompleteness:    c.completeness(l, contentLength),
		DuplicateDetection:  c.duplicates(l),
	}
}

func (c *IntegrityChecker) sequence(l *ledger.Ledger) SequenceIntegrity {
	ordered := l.Ordered()
	if len(ordered) == 0 {
		return SequenceIntegrity{MissingSequences: []uint64{}, Message: MsgNoData}
	}

	res := SequenceIntegrity{
		MinSequence:      ordered[0].Sequence,
		MaxSequence:      ordered[len(ordered)-1].Sequence,
		MissingSequences: []uint64{},
	}
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1].Sequence, ordered[i].Sequence
		if cur-prev <= 1 {
			continue
		}
		res.MissingCount += cur - prev - 1
		for s := prev + 1; s < cur && len(res.MissingSequences) < c.th.MaxReportedGaps; s++ {
			res.MissingSequences = append(res.MissingSequences, s)
		}
	}

	res.Valid = res.MissingCount == 0
	if res.Valid {
		res.Message = fmt.Sprintf("sequence %d..%d is complete", res.MinSequence, res.MaxSequence)
	} else {
		res.Message = fmt.Sprintf("%d sequence numbers missing between %d and %d",
			res.MissingCount, res.MinSequence, res.MaxSequence)
	}
	return res
}

func (c *IntegrityChecker) temporal(l *ledger.Ledger) TemporalConsistency {
	ordered := l.Ordered()
	if len(ordered) < 2 {
		return TemporalConsistency{Message: MsgInsufficientData}
	}

	res := TemporalConsistency{AdjacentPairs: len(ordered) - 1}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Timestamp < ordered[i-1].Timestamp {
			res.Reversals++
		}
	}
	res.ReversalRatio = float64(res.Reversals) / float64(res.AdjacentPairs)
	res.Valid = res.ReversalRatio <= c.th.MaxReversalRatio
	if res.Valid {
		res.Message = fmt.Sprintf("%d of %d adjacent pairs run backwards", res.Reversals, res.AdjacentPairs)
	} else {
		res.Message = fmt.Sprintf("timestamps run backwards in %d of %d adjacent pairs (%.1f%%)",
			res.Reversals, res.AdjacentPairs, res.ReversalRatio*100)
	}
	return res
}

func (c *IntegrityChecker) duplicates(l *ledger.Ledger) DuplicateDetection {
	rows := l.All()
	if len(rows) == 0 {
		return DuplicateDetection{DuplicateSequences: []uint64{}, Message: MsgNoData}
	}

	seen := make(map[uint64]int, len(rows))
	for _, ev := range rows {
		seen[ev.Sequence]++
	}
	res := DuplicateDetection{DuplicateSequences: []uint64{}}
	for seq, n := range seen {
		if n > 1 {
			res.DuplicateSequences = append(res.DuplicateSequences, seq)
			res.DuplicateRows += n - 1
		}
	}
	sort.Slice(res.DuplicateSequences, func(i, j int) bool {
		return res.DuplicateSequences[i] < res.DuplicateSequences[j]
	})

	res.Valid = len(res.DuplicateSequences) == 0
	if res.Valid {
		res.Message = "no duplicate sequence numbers"
	} else {
		res.Message = fmt.Sprintf("%d sequence numbers stored more than once", len(res.DuplicateSequences))
	}
	return res
}

func (c *IntegrityChecker) completeness(l *ledger.Ledger, contentLength int) DataCompleteness {
	res := DataCompleteness{
		EventCount:    l.Len(),
		ContentLength: contentLength,
		ExpectedMin:   c.th.CompletenessMin,
		ExpectedMax:   c.th.CompletenessMax,
	}
	if contentLength > 0 {
		res.Ratio = float64(res.EventCount) / float64(contentLength)
	}
	res.Valid = res.Ratio >= c.th.CompletenessMin && res.Ratio <= c.th.CompletenessMax

	switch {
	case contentLength == 0:
		res.Message = "document has no content to compare against"
	case res.Valid:
		res.Message = fmt.Sprintf("%.2f events per character", res.Ratio)
	case res.Ratio < c.th.CompletenessMin:
		res.Message = fmt.Sprintf("only %.2f events per character, expected at least %.1f", res.Ratio, c.th.CompletenessMin)
	default:
		res.Message = fmt.Sprintf("%.2f events per character, expected at most %.1f", res.Ratio, c.th.CompletenessMax)
	}
	return res
}
