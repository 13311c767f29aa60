// Package forensics checks keystroke ledgers for structural integrity and
// scores how closely their timing resembles organic human typing.
package forensics

// Messages used by sub-checks that had nothing to work with.
const (
	MsgNoData           = "no keystroke data"
	MsgInsufficientData = "insufficient data"
)

// SequenceIntegrity reports gaps in the sequence-number range.
type SequenceIntegrity struct {
	Valid            bool     `json:"valid"`
	MinSequence      uint64   `json:"min_sequence"`
	MaxSequence      uint64   `json:"max_sequence"`
	MissingSequences []uint64 `json:"missing_sequences"`
	MissingCount     uint64   `json:"missing_count"`
	Message          string   `json:"message"`
}

// TemporalConsistency reports timestamps that run backwards in sequence order.
type TemporalConsistency struct {
	Valid         bool    `json:"valid"`
	Reversals     int     `json:"reversals"`
	AdjacentPairs int     `json:"adjacent_pairs"`
	ReversalRatio float64 `json:"reversal_ratio"`
	Message       string  `json:"message"`
}

// DuplicateDetection reports sequence numbers stored more than once.
type DuplicateDetection struct {
	Valid              bool     `json:"valid"`
	DuplicateSequences []uint64 `json:"duplicate_sequences"`
	DuplicateRows      int      `json:"duplicate_rows"`
	Message            string   `json:"message"`
}

// DataCompleteness compares ledger size with the stored document length.
type DataCompleteness struct {
	Valid         bool    `json:"valid"`
	Ratio         float64 `json:"ratio"`
	EventCount    int     `json:"event_count"`
	ContentLength int     `json:"content_length"`
	ExpectedMin   float64 `json:"expected_min_ratio"`
	ExpectedMax   float64 `json:"expected_max_ratio"`
	Message       string  `json:"message"`
}

// IntegrityReport bundles the four independent structural checks.
type IntegrityReport struct {
	SequenceIntegrity   SequenceIntegrity   `json:"sequence_integrity"`
	TemporalConsistency TemporalConsistency `json:"temporal_consistency"`
	DataCompleteness    DataCompleteness    `json:"data_completeness"`
	DuplicateDetection  DuplicateDetection  `json:"duplicate_detection"`
}

// Passed returns how many of the four checks are valid.
func (r IntegrityReport) Passed() int {
	n := 0
	for _, ok := range []bool{
		r.SequenceIntegrity.Valid,
		r.TemporalConsistency.Valid,
		r.DataCompleteness.Valid,
		r.DuplicateDetection.Valid,
	} {
		if ok {
			n++
		}
	}
	return n
}

// ConfidenceBreakdown shows how the naturalness confidence was earned.
type ConfidenceBreakdown struct {
	Variance     int `json:"variance"`
	Speed        int `json:"speed"`
	Distribution int `json:"distribution"`
	Consistency  int `json:"consistency"`
}

// Total is the sum of all components.
func (b ConfidenceBreakdown) Total() int {
	return b.Variance + b.Speed + b.Distribution + b.Consistency
}

// NaturalTypingPatterns is the headline naturalness verdict.
type NaturalTypingPatterns struct {
	Detected     bool                `json:"detected"`
	Confidence   int                 `json:"confidence"`
	Breakdown    ConfidenceBreakdown `json:"breakdown"`
	MeanInterval float64             `json:"mean_interval"`
	StdDev       float64             `json:"std_dev"`
	SampleCount  int                 `json:"sample_count"`
	Message      string              `json:"message"`
}

// TimingVariance reports the coefficient of variation of intervals.
type TimingVariance struct {
	NaturalVariance        bool    `json:"natural_variance"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
	Message                string  `json:"message"`
}

// PausePatterns reports the share of short, medium and long intervals.
type PausePatterns struct {
	NaturalPattern bool    `json:"natural_pattern"`
	ShortPauses    int     `json:"short_pauses"`
	MediumPauses   int     `json:"medium_pauses"`
	LongPauses     int     `json:"long_pauses"`
	ShortRatio     float64 `json:"short_ratio"`
	MediumRatio    float64 `json:"medium_ratio"`
	LongRatio      float64 `json:"long_ratio"`
	Message        string  `json:"message"`
}

// KeystrokeRhythm reports how stable the typing cadence is.
type KeystrokeRhythm struct {
	RhythmScore    float64 `json:"rhythm_score"`
	MedianInterval float64 `json:"median_interval"`
	MedianAbsDev   float64 `json:"median_absolute_deviation"`
	Message        string  `json:"message"`
}

// AuthenticitySignals bundles the timing-based naturalness signals.
type AuthenticitySignals struct {
	Insufficient          bool                  `json:"insufficient_data"`
	NaturalTypingPatterns NaturalTypingPatterns `json:"natural_typing_patterns"`
	TimingVariance        TimingVariance        `json:"timing_variance"`
	PausePatterns         PausePatterns         `json:"pause_patterns"`
	KeystrokeRhythm       KeystrokeRhythm       `json:"keystroke_rhythm"`
}
