package forensics

import "fmt"

// Thresholds holds every tunable constant used by the Checker and Analyzer.
// Interval values are in seconds.
type Thresholds struct {
	// Integrity
	MaxReversalRatio float64 // Share of adjacent pairs allowed to run backwards (default: 0.05)
	CompletenessMin  float64 // Minimum events per content character (default: 1.5)
	CompletenessMax  float64 // Maximum events per content character (default: 5.0)
	MaxReportedGaps  int     // Cap on listed missing sequence numbers (default: 100)

	// Naturalness
	MinSamples int     // Minimum KeyDown events for timing analysis (default: 20)
	StdDevMin  float64 // Exclusive lower bound on interval std dev (default: 0.01)
	StdDevMax  float64 // Exclusive upper bound on interval std dev (default: 2.0)
	MeanMin    float64 // Exclusive lower bound on mean interval (default: 0.05)
	MeanMax    float64 // Exclusive upper bound on mean interval (default: 5.0)

	// Confidence distribution buckets
	DistShortMax    float64 // Intervals below this are short (default: 0.2)
	DistMediumMax   float64 // Intervals below this are medium (default: 1.0)
	DistMediumShare float64 // Medium share needed for full points (default: 0.4)
	DistShortShare  float64 // Short share needed for full points (default: 0.1)
	DistLongShare   float64 // Long share allowed for full points (default: 0.3)
	DistMediumAlone float64 // Medium share for partial points (default: 0.3)

	// Confidence consistency buckets
	BucketWidth       float64 // Rounding granularity (default: 0.1)
	UniformityHigh    float64 // Full points below this dominance (default: 0.3)
	UniformityPartial float64 // Partial points below this dominance (default: 0.5)

	// Coefficient of variation band
	CVMin float64 // default: 0.2
	CVMax float64 // default: 2.0

	// Pause buckets
	PauseShortMax    float64 // default: 0.5
	PauseMediumMax   float64 // default: 2.0
	PauseShortShare  float64 // Short share must exceed this (default: 0.5)
	PauseMediumShare float64 // Medium share must exceed this (default: 0.1)
	PauseLongShare   float64 // Long share must stay below this (default: 0.3)
}

// DefaultThresholds returns the calibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxReversalRatio: 0.05,
		CompletenessMin:  1.5,
		CompletenessMax:  5.0,
		MaxReportedGaps:  100,

		MinSamples: 20,
		StdDevMin:  0.01,
		StdDevMax:  2.0,
		MeanMin:    0.05,
		MeanMax:    5.0,

		DistShortMax:    0.2,
		DistMediumMax:   1.0,
		DistMediumShare: 0.4,
		DistShortShare:  0.1,
		DistLongShare:   0.3,
		DistMediumAlone: 0.3,

		BucketWidth:       0.1,
		UniformityHigh:    0.3,
		UniformityPartial: 0.5,

		CVMin: 0.2,
		CVMax: 2.0,

		PauseShortMax:    0.5,
		PauseMediumMax:   2.0,
		PauseShortShare:  0.5,
		PauseMediumShare: 0.1,
		PauseLongShare:   0.3,
	}
}

// Validate reports the first inconsistent setting.
func (t Thresholds) Validate() error {
	switch {
	case t.MaxReversalRatio < 0 || t.MaxReversalRatio > 1:
		return fmt.Errorf("max_reversal_ratio must be within [0,1], got %v", t.MaxReversalRatio)
	case t.CompletenessMin < 0 || t.CompletenessMax < t.CompletenessMin:
		return fmt.Errorf("completeness range [%v,%v] is invalid", t.CompletenessMin, t.CompletenessMax)
	case t.MinSamples < 3:
		return fmt.Errorf("min_samples must be at least 3, got %d", t.MinSamples)
	case t.StdDevMax <= t.StdDevMin:
		return fmt.Errorf("std dev band (%v,%v) is empty", t.StdDevMin, t.StdDevMax)
	case t.MeanMax <= t.MeanMin:
		return fmt.Errorf("mean band (%v,%v) is empty", t.MeanMin, t.MeanMax)
	case t.DistMediumMax <= t.DistShortMax:
		return fmt.Errorf("distribution buckets must increase, got %v then %v", t.DistShortMax, t.DistMediumMax)
	case t.BucketWidth <= 0:
		return fmt.Errorf("bucket_width must be positive, got %v", t.BucketWidth)
	case t.CVMax <= t.CVMin:
		return fmt.Errorf("cv band (%v,%v) is empty", t.CVMin, t.CVMax)
	case t.PauseMediumMax <= t.PauseShortMax:
		return fmt.Errorf("pause buckets must increase, got %v then %v", t.PauseShortMax, t.PauseMediumMax)
	}
	return nil
}
