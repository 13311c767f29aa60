package forensics

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// PrintReport Tests
// =============================================================================

func TestPrintReport(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		l := KeyDownLedger(Timestamps(NewTestDataGenerator(42).HumanIntervals(100)))
		ir := NewIntegrityChecker().CheckLength(l, 50)
		as := NewAnalyzer().Analyze(l)

		var buf bytes.Buffer
		PrintReport(&buf, &ir, &as)
		out := buf.String()

		for _, want := range []string{
			"KEYSTROKE FORENSIC ANALYSIS",
			"DATA INTEGRITY",
			"[PASS] Sequence integrity",
			"Checks passed:  4/4",
			"AUTHENTICITY",
			"Naturalness confidence:",
			"Rhythm score:",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("gaps and insufficient data", func(t *testing.T) {
		l := SequenceLedger(1, 2, 5)
		ir := NewIntegrityChecker().CheckLength(l, 0)
		as := NewAnalyzer().Analyze(l)

		var buf bytes.Buffer
		PrintReport(&buf, &ir, &as)
		out := buf.String()

		if !strings.Contains(out, "missing: 3, 4") {
			t.Errorf("missing sequences not listed:\n%s", out)
		}
		if !strings.Contains(out, MsgInsufficientData) {
			t.Error("insufficient data not reported")
		}
		if strings.Contains(out, "Rhythm score:") {
			t.Error("rhythm printed for insufficient data")
		}
	})

	t.Run("nil", func(t *testing.T) {
		var buf bytes.Buffer
		PrintReport(&buf, nil, nil)
		if !strings.Contains(buf.String(), "No analysis data") {
			t.Errorf("unexpected output %q", buf.String())
		}
	})
}

func TestFormatSequences(t *testing.T) {
	seqs := []uint64{1, 2, 3, 4, 5}
	if got := formatSequences(seqs, 10); got != "1, 2, 3, 4, 5" {
		t.Errorf("got %q", got)
	}
	if got := formatSequences(seqs, 2); got != "1, 2, ... (3 more)" {
		t.Errorf("got %q", got)
	}
}

// =============================================================================
// Formatting helpers
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0 seconds"},
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{45 * time.Second, "45 seconds"},
		{61 * time.Second, "1 minute, 1 second"},
		{3*time.Minute + 12*time.Second, "3 minutes, 12 seconds"},
		{time.Hour + 5*time.Minute, "1 hour, 5 minutes"},
		{50 * time.Hour, "2 days, 2 hours"},
		{25 * time.Hour, "1 day, 1 hour"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatMetricBar(t *testing.T) {
	tests := []struct {
		name            string
		value, min, max float64
		width           int
		want            string
	}{
		{"empty", 0, 0, 1, 10, "[----------]"},
		{"full", 1, 0, 1, 10, "[##########]"},
		{"half", 0.5, 0, 1, 10, "[#####-----]"},
		{"clamped high", 5, 0, 1, 4, "[####]"},
		{"clamped low", -5, 0, 1, 4, "[----]"},
		{"zero width", 0.5, 0, 1, 0, ""},
		{"degenerate range", 0.5, 1, 1, 3, "---"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatMetricBar(tt.value, tt.min, tt.max, tt.width); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
