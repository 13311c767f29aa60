package verify

import (
	"typeproof/internal/forensics"
	"typeproof/internal/keystroke"
	"typeproof/internal/ledger"
)

// Statistics computes descriptive statistics for the statistical_analysis
// section.
func Statistics(l *ledger.Ledger) StatisticalAnalysis {
	ordered := l.Ordered()
	s := StatisticalAnalysis{TotalEvents: len(ordered)}
	if len(ordered) == 0 {
		return s
	}

	var inserted int
	var downTimes []float64
	first, last := ordered[0].Timestamp, ordered[0].Timestamp
	for _, ev := range ordered {
		if ev.Timestamp < first {
			first = ev.Timestamp
		}
		if ev.Timestamp > last {
			last = ev.Timestamp
		}

		switch ev.Type {
		case keystroke.KeyDown:
			s.KeyDownEvents++
			downTimes = append(downTimes, ev.Timestamp)
			switch a, _ := keystroke.Resolve(ev); a {
			case keystroke.ActionInsert:
				inserted++
			case keystroke.ActionBackspace:
				s.BackspaceCount++
			case keystroke.ActionDelete:
				s.DeleteCount++
			}
		case keystroke.KeyUp:
			s.KeyUpEvents++
		case keystroke.Paste:
			s.PasteEvents++
		}
	}

	if s.KeyDownEvents > 0 {
		s.CorrectionRatio = float64(s.BackspaceCount+s.DeleteCount) / float64(s.KeyDownEvents)
	}
	s.SessionDurationSeconds = last - first
	if s.SessionDurationSeconds > 0 {
		s.CharactersPerMinute = float64(inserted) / (s.SessionDurationSeconds / 60)
	}

	sum := forensics.Summarize(forensics.KeyDownIntervals(downTimes))
	s.MeanInterval = sum.Mean
	s.MedianInterval = sum.Median
	s.StdDevInterval = sum.StdDev
	s.CoefficientOfVariation = sum.CV
	return s
}
