package forensics

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// PrintReport writes a formatted forensic breakdown to w.
func PrintReport(w io.Writer, integrity *IntegrityReport, signals *AuthenticitySignals) {
	if integrity == nil && signals == nil {
		fmt.Fprintln(w, "No analysis data available")
		return
	}

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "                    KEYSTROKE FORENSIC ANALYSIS")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	if integrity != nil {
		section(w, "DATA INTEGRITY")
		check(w, "Sequence integrity", integrity.SequenceIntegrity.Valid, integrity.SequenceIntegrity.Message)
		if n := len(integrity.SequenceIntegrity.MissingSequences); n > 0 {
			fmt.Fprintf(w, "  -> missing: %s\n", formatSequences(integrity.SequenceIntegrity.MissingSequences, 10))
		}
		check(w, "Temporal consistency", integrity.TemporalConsistency.Valid, integrity.TemporalConsistency.Message)
		check(w, "Data completeness", integrity.DataCompleteness.Valid, integrity.DataCompleteness.Message)
		check(w, "Duplicate detection", integrity.DuplicateDetection.Valid, integrity.DuplicateDetection.Message)
		fmt.Fprintf(w, "\nChecks passed:  %d/4  %s\n\n", integrity.Passed(),
			FormatMetricBar(float64(integrity.Passed()), 0, 4, 20))
	}

	if signals != nil {
		section(w, "AUTHENTICITY")
		n := signals.NaturalTypingPatterns
		if signals.Insufficient {
			fmt.Fprintf(w, "%s\n\n", n.Message)
			return
		}

		fmt.Fprintf(w, "Naturalness confidence:   %3d  %s\n", n.Confidence,
			FormatMetricBar(float64(n.Confidence), 0, 100, 20))
		fmt.Fprintf(w, "  variance %d, speed %d, distribution %d, consistency %d\n",
			n.Breakdown.Variance, n.Breakdown.Speed, n.Breakdown.Distribution, n.Breakdown.Consistency)
		fmt.Fprintf(w, "  -> %s\n\n", n.Message)

		fmt.Fprintf(w, "Mean interval:            %s\n", formatSeconds(n.MeanInterval))
		fmt.Fprintf(w, "  -> %s\n\n", interpretMeanInterval(n.MeanInterval))

		cv := signals.TimingVariance.CoefficientOfVariation
		fmt.Fprintf(w, "Coefficient of variation: %.3f  %s\n", cv, FormatMetricBar(cv, 0, 2, 20))
		fmt.Fprintf(w, "  -> %s\n\n", interpretCV(cv))

		p := signals.PausePatterns
		fmt.Fprintf(w, "Pauses (short/med/long):  %d / %d / %d\n", p.ShortPauses, p.MediumPauses, p.LongPauses)
		fmt.Fprintf(w, "  -> %s\n\n", p.Message)

		r := signals.KeystrokeRhythm
		fmt.Fprintf(w, "Rhythm score:             %.1f  %s\n", r.RhythmScore, FormatMetricBar(r.RhythmScore, 0, 100, 20))
		fmt.Fprintf(w, "  -> %s\n\n", interpretRhythm(r.RhythmScore))
	}
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w)
}

func check(w io.Writer, name string, ok bool, msg string) {
	fmt.Fprintf(w, "[%s] %-22s %s\n", passMarker(ok), name, msg)
}

func passMarker(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func formatSequences(seqs []uint64, max int) string {
	parts := make([]string, 0, max+1)
	for i, s := range seqs {
		if i == max {
			parts = append(parts, fmt.Sprintf("... (%d more)", len(seqs)-max))
			break
		}
		parts = append(parts, fmt.Sprintf("%d", s))
	}
	return strings.Join(parts, ", ")
}

func formatSeconds(s float64) string {
	if s < 1 {
		return fmt.Sprintf("%.0f ms", s*1000)
	}
	return fmt.Sprintf("%.2f sec", s)
}

// FormatDuration produces human-readable duration (e.g., "3 minutes, 12 seconds").
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "0 seconds"
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	switch {
	case days > 0:
		return plural(days, "day") + ", " + plural(hours, "hour")
	case hours > 0:
		return plural(hours, "hour") + ", " + plural(minutes, "minute")
	case minutes > 0:
		return plural(minutes, "minute") + ", " + plural(seconds, "second")
	default:
		return plural(seconds, "second")
	}
}

// FormatMetricBar produces ASCII progress bar for metric visualization.
func FormatMetricBar(value, min, max float64, width int) string {
	if width <= 0 {
		return ""
	}
	if max <= min {
		return strings.Repeat("-", width)
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	filled := int(normalized * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	return "[" + bar + "]"
}

func interpretMeanInterval(s float64) string {
	switch {
	case s < 0.05:
		return "Very fast: faster than sustained human typing (automated?)"
	case s < 0.15:
		return "Fast: practiced touch typing"
	case s < 0.5:
		return "Moderate: typical composing pace"
	case s < 5:
		return "Slow: deliberate or interrupted typing"
	default:
		return "Very slow: long gaps dominate the session"
	}
}

func interpretCV(cv float64) string {
	switch {
	case cv < 0.2:
		return "Very low: machine-like regularity (suspicious)"
	case cv < 0.6:
		return "Moderate: steady but varied rhythm"
	case cv < 2:
		return "High: bursty typing with pauses (typical human behavior)"
	default:
		return "Extreme: erratic timing dominated by outliers"
	}
}

func interpretRhythm(score float64) string {
	switch {
	case score > 90:
		return "Near-constant cadence (scripted input?)"
	case score > 50:
		return "Consistent personal rhythm"
	case score > 0:
		return "Loose rhythm with frequent variation"
	default:
		return "No discernible rhythm"
	}
}
