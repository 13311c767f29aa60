package verify

import (
	"fmt"
	"time"

	"typeproof/internal/forensics"
)

// Options controls Build.
type Options struct {
	// Statistics fills the statistical_analysis section when set.
	Statistics *StatisticalAnalysis
	// Clock stamps GeneratedAt. Defaults to time.Now.
	Clock func() time.Time
}

// Score computes the overall confidence from the sub-check results.
func Score(ir forensics.IntegrityReport, as forensics.AuthenticitySignals) int {
	score := ir.Passed() * IntegrityCheckPoints
	for _, ok := range []bool{
		as.NaturalTypingPatterns.Detected,
		as.TimingVariance.NaturalVariance,
		as.PausePatterns.NaturalPattern,
	} {
		if ok {
			score += AuthenticitySignalPoint
		}
	}
	return score
}

// Build assembles a report. It never fails; absent data lowers confidence.
func Build(doc DocumentInfo, ir forensics.IntegrityReport, as forensics.AuthenticitySignals, opts Options) *Report {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	confidence := Score(ir, as)
	r := &Report{
		DocumentInfo: doc,
		DataIntegrity: DataIntegrity{
			SequenceIntegrity:   ir.SequenceIntegrity,
			TemporalConsistency: ir.TemporalConsistency,
			DataCompleteness:    ir.DataCompleteness,
			DuplicateDetection:  ir.DuplicateDetection,
		},
		AuthenticityAnalysis: AuthenticityAnalysis{
			InsufficientData:      as.Insufficient,
			NaturalTypingPatterns: as.NaturalTypingPatterns,
			TimingVariance:        as.TimingVariance,
			PausePatterns:         as.PausePatterns,
			KeystrokeRhythm:       as.KeystrokeRhythm,
		},
		VerificationSummary: Summary{
			OverallStatus:   StatusFor(confidence),
			ConfidenceLevel: confidence,
			KeyFindings:     findings(doc, ir, as),
			Recommendations: recommendations(ir, as),
		},
		GeneratedAt: clock().UTC(),
	}
	if opts.Statistics != nil {
		r.StatisticalAnalysis = *opts.Statistics
	}
	return r
}

func findings(doc DocumentInfo, ir forensics.IntegrityReport, as forensics.AuthenticitySignals) []string {
	out := make([]string, 0, 8)

	if ir.SequenceIntegrity.Valid {
		out = append(out, "Keystroke sequence is complete with no gaps")
	} else if ir.SequenceIntegrity.Message == forensics.MsgNoData {
		out = append(out, "No keystroke data recorded for this document")
	} else {
		out = append(out, fmt.Sprintf("Keystroke sequence has %d missing events", ir.SequenceIntegrity.MissingCount))
	}

	if ir.TemporalConsistency.Valid {
		out = append(out, "Timestamps progress consistently")
	} else if ir.TemporalConsistency.Message == forensics.MsgInsufficientData {
		out = append(out, "Too few events to check timestamp ordering")
	} else {
		out = append(out, fmt.Sprintf("Timestamps run backwards in %d places", ir.TemporalConsistency.Reversals))
	}

	if ir.DataCompleteness.Valid {
		out = append(out, fmt.Sprintf("Keystroke volume matches document length (%.1f events per character)", ir.DataCompleteness.Ratio))
	} else {
		out = append(out, fmt.Sprintf("Keystroke volume does not match document length (%.1f events per character)", ir.DataCompleteness.Ratio))
	}

	if ir.DuplicateDetection.Valid {
		out = append(out, "No duplicate keystrokes")
	} else if len(ir.DuplicateDetection.DuplicateSequences) > 0 {
		out = append(out, fmt.Sprintf("%d keystrokes were recorded more than once", len(ir.DuplicateDetection.DuplicateSequences)))
	} else {
		out = append(out, "No keystrokes to check for duplicates")
	}

	switch {
	case as.Insufficient:
		out = append(out, "Not enough keystrokes for timing analysis")
	case as.NaturalTypingPatterns.Detected:
		out = append(out, fmt.Sprintf("Natural typing patterns detected (confidence %d/100)", as.NaturalTypingPatterns.Confidence))
	default:
		out = append(out, "Typing timing does not look natural")
	}

	if !as.Insufficient {
		if as.TimingVariance.NaturalVariance {
			out = append(out, "Timing variation is within the human range")
		} else {
			out = append(out, "Timing variation is outside the human range")
		}
		if as.PausePatterns.NaturalPattern {
			out = append(out, "Pause pattern is consistent with composing text")
		} else {
			out = append(out, "Pause pattern is unusual")
		}
	}

	if doc.EventCount > 0 && !doc.ReconstructionMatch {
		out = append(out, "Replayed keystrokes do not reproduce the submitted content")
	}
	return out
}

func recommendations(ir forensics.IntegrityReport, as forensics.AuthenticitySignals) []string {
	out := []string{}
	if !ir.SequenceIntegrity.Valid || !ir.DuplicateDetection.Valid {
		out = append(out, "Check the capture client for dropped or resent keystroke batches")
	}
	if !ir.TemporalConsistency.Valid {
		out = append(out, "Check the capture client clock and timestamp units")
	}
	if !ir.DataCompleteness.Valid {
		out = append(out, "Compare the document against its keystroke history for pasted or externally edited content")
	}
	if as.Insufficient {
		out = append(out, "Collect more keystroke data before drawing conclusions")
	} else if !as.NaturalTypingPatterns.Detected || !as.TimingVariance.NaturalVariance || !as.PausePatterns.NaturalPattern {
		out = append(out, "Review the writing session manually for automated or scripted input")
	}
	return out
}
