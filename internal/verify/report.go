// Package verify assembles integrity and authenticity results into a
// verification report with an overall confidence score and status.
package verify

import (
	"time"

	"typeproof/internal/forensics"
)

// Status is the overall classification of a confidence score.
type Status string

const (
	StatusHighConfidence   Status = "verified_high_confidence"
	StatusMediumConfidence Status = "verified_medium_confidence"
	StatusLowConfidence    Status = "verified_low_confidence"
	StatusQuestionable     Status = "questionable"
	StatusUnverified       Status = "unverified"
)

// Score weights.
const (
	IntegrityCheckPoints    = 10
	AuthenticitySignalPoint = 20
)

// StatusFor maps a confidence score to its status.
func StatusFor(confidence int) Status {
	switch {
	case confidence >= 90:
		return StatusHighConfidence
	case confidence >= 70:
		return StatusMediumConfidence
	case confidence >= 50:
		return StatusLowConfidence
	case confidence >= 30:
		return StatusQuestionable
	default:
		return StatusUnverified
	}
}

// Label returns a short human-readable form of the status.
func (s Status) Label() string {
	switch s {
	case StatusHighConfidence:
		return "Verified (high confidence)"
	case StatusMediumConfidence:
		return "Verified (medium confidence)"
	case StatusLowConfidence:
		return "Verified (low confidence)"
	case StatusQuestionable:
		return "Questionable"
	default:
		return "Unverified"
	}
}

// DocumentInfo describes the document the report was built for.
type DocumentInfo struct {
	DocumentID          string `json:"document_id"`
	ContentLength       int    `json:"content_length"`
	EventCount          int    `json:"event_count"`
	LedgerDigest        string `json:"ledger_digest,omitempty"`
	ReconstructedLength int    `json:"reconstructed_length"`
	ReconstructionMatch bool   `json:"reconstruction_matches_content"`
}

// DataIntegrity is the integrity section of the report.
type DataIntegrity struct {
	SequenceIntegrity   forensics.SequenceIntegrity   `json:"sequence_integrity"`
	TemporalConsistency forensics.TemporalConsistency `json:"temporal_consistency"`
	DataCompleteness    forensics.DataCompleteness    `json:"data_completeness"`
	DuplicateDetection  forensics.DuplicateDetection  `json:"duplicate_detection"`
}

// AuthenticityAnalysis is the authenticity section of the report.
type AuthenticityAnalysis struct {
	InsufficientData      bool                            `json:"insufficient_data"`
	NaturalTypingPatterns forensics.NaturalTypingPatterns `json:"natural_typing_patterns"`
	TimingVariance        forensics.TimingVariance        `json:"timing_variance"`
	PausePatterns         forensics.PausePatterns         `json:"pause_patterns"`
	KeystrokeRhythm       forensics.KeystrokeRhythm       `json:"keystroke_rhythm"`
}

// StatisticalAnalysis holds descriptive statistics of the ledger.
type StatisticalAnalysis struct {
	TotalEvents            int     `json:"total_events"`
	KeyDownEvents          int     `json:"keydown_events"`
	KeyUpEvents            int     `json:"keyup_events"`
	PasteEvents            int     `json:"paste_events"`
	BackspaceCount         int     `json:"backspace_count"`
	DeleteCount            int     `json:"delete_count"`
	CorrectionRatio        float64 `json:"correction_ratio"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
	CharactersPerMinute    float64 `json:"characters_per_minute"`
	MeanInterval           float64 `json:"mean_interval"`
	MedianInterval         float64 `json:"median_interval"`
	StdDevInterval         float64 `json:"std_dev_interval"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
}

// Summary is the verdict section of the report.
type Summary struct {
	OverallStatus   Status   `json:"overall_status"`
	ConfidenceLevel int      `json:"confidence_level"`
	KeyFindings     []string `json:"key_findings"`
	Recommendations []string `json:"recommendations"`
}

// Report is the full verification report.
type Report struct {
	DocumentInfo         DocumentInfo         `json:"document_info"`
	DataIntegrity        DataIntegrity        `json:"data_integrity"`
	AuthenticityAnalysis AuthenticityAnalysis `json:"authenticity_analysis"`
	StatisticalAnalysis  StatisticalAnalysis  `json:"statistical_analysis"`
	VerificationSummary  Summary              `json:"verification_summary"`
	GeneratedAt          time.Time            `json:"generated_at"`
}

// Status returns the overall status.
func (r *Report) Status() Status {
	return r.VerificationSummary.OverallStatus
}

// Integrity returns the integrity section as the checker produced it.
func (r *Report) Integrity() forensics.IntegrityReport {
	d := r.DataIntegrity
	return forensics.IntegrityReport{
		SequenceIntegrity:   d.SequenceIntegrity,
		TemporalConsistency: d.TemporalConsistency,
		DataCompleteness:    d.DataCompleteness,
		DuplicateDetection:  d.DuplicateDetection,
	}
}

// Signals returns the authenticity section as the analyzer produced it.
func (r *Report) Signals() forensics.AuthenticitySignals {
	a := r.AuthenticityAnalysis
	return forensics.AuthenticitySignals{
		Insufficient:          a.InsufficientData,
		NaturalTypingPatterns: a.NaturalTypingPatterns,
		TimingVariance:        a.TimingVariance,
		PausePatterns:         a.PausePatterns,
		KeystrokeRhythm:       a.KeystrokeRhythm,
	}
}

// Confidence returns the overall confidence score.
func (r *Report) Confidence() int {
	return r.VerificationSummary.ConfidenceLevel
}
