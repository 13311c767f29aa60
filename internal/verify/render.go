package verify

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"typeproof/internal/forensics"
)

// ReportFormat specifies the output format for verification reports.
type ReportFormat string

const (
	FormatJSON     ReportFormat = "json"
	FormatText     ReportFormat = "text"
	FormatMarkdown ReportFormat = "markdown"
)

// ParseFormat accepts json, text, markdown or md.
func ParseFormat(s string) (ReportFormat, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "text", "txt", "":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

// ReportGenerator renders verification reports in various formats.
type ReportGenerator struct {
	format  ReportFormat
	verbose bool
}

// NewReportGenerator creates a new report generator.
func NewReportGenerator(format ReportFormat) *ReportGenerator {
	return &ReportGenerator{format: format}
}

// WithVerbose includes per-check messages and the full ledger digest.
func (g *ReportGenerator) WithVerbose(verbose bool) *ReportGenerator {
	g.verbose = verbose
	return g
}

// Generate produces a report in the configured format.
func (g *ReportGenerator) Generate(report *Report, w io.Writer) error {
	switch g.format {
	case FormatJSON:
		return g.generateJSON(report, w)
	case FormatText:
		return g.generateText(report, w)
	case FormatMarkdown:
		return g.generateMarkdown(report, w)
	default:
		return fmt.Errorf("unknown format: %s", g.format)
	}
}

func (g *ReportGenerator) generateJSON(report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

type checkLine struct {
	Name    string
	Passed  bool
	Message string
}

func integrityLines(r *Report) []checkLine {
	d := r.DataIntegrity
	return []checkLine{
		{"Sequence integrity", d.SequenceIntegrity.Valid, d.SequenceIntegrity.Message},
		{"Temporal consistency", d.TemporalConsistency.Valid, d.TemporalConsistency.Message},
		{"Data completeness", d.DataCompleteness.Valid, d.DataCompleteness.Message},
		{"Duplicate detection", d.DuplicateDetection.Valid, d.DuplicateDetection.Message},
	}
}

func authenticityLines(r *Report) []checkLine {
	a := r.AuthenticityAnalysis
	return []checkLine{
		{"Natural typing patterns", a.NaturalTypingPatterns.Detected, a.NaturalTypingPatterns.Message},
		{"Timing variance", a.TimingVariance.NaturalVariance, a.TimingVariance.Message},
		{"Pause patterns", a.PausePatterns.NaturalPattern, a.PausePatterns.Message},
	}
}

func (g *ReportGenerator) generateText(report *Report, w io.Writer) error {
	fmt.Fprintln(w, "================================================================================")
	fmt.Fprintln(w, "                    KEYSTROKE PROVENANCE VERIFICATION REPORT")
	fmt.Fprintln(w, "================================================================================")
	fmt.Fprintln(w)

	s := report.VerificationSummary
	fmt.Fprintf(w, "Status:          %s\n", s.OverallStatus.Label())
	fmt.Fprintf(w, "Confidence:      %d/100\n", s.ConfidenceLevel)
	fmt.Fprintf(w, "Generated:       %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintln(w)

	d := report.DocumentInfo
	fmt.Fprintln(w, "--- Document Information ---")
	fmt.Fprintf(w, "Document:        %s\n", d.DocumentID)
	fmt.Fprintf(w, "Content Length:  %d characters\n", d.ContentLength)
	fmt.Fprintf(w, "Events:          %d\n", d.EventCount)
	if d.LedgerDigest != "" {
		fmt.Fprintf(w, "Ledger Digest:   %s\n", g.truncateHash(d.LedgerDigest))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Data Integrity ---")
	for _, c := range integrityLines(report) {
		g.writeCheck(w, c)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Authenticity Analysis ---")
	if report.AuthenticityAnalysis.InsufficientData {
		fmt.Fprintf(w, "[--] %s\n", report.AuthenticityAnalysis.NaturalTypingPatterns.Message)
	} else {
		for _, c := range authenticityLines(report) {
			g.writeCheck(w, c)
		}
		fmt.Fprintf(w, "     Rhythm score: %.1f\n", report.AuthenticityAnalysis.KeystrokeRhythm.RhythmScore)
	}
	fmt.Fprintln(w)

	st := report.StatisticalAnalysis
	if st.TotalEvents > 0 {
		fmt.Fprintln(w, "--- Statistics ---")
		fmt.Fprintf(w, "Key presses:     %d (%d backspace, %d delete)\n", st.KeyDownEvents, st.BackspaceCount, st.DeleteCount)
		fmt.Fprintf(w, "Pastes:          %d\n", st.PasteEvents)
		if g.verbose {
			session := time.Duration(st.SessionDurationSeconds * float64(time.Second))
			fmt.Fprintf(w, "Session:         %.1f s (%s)\n", st.SessionDurationSeconds, forensics.FormatDuration(session))
		} else {
			fmt.Fprintf(w, "Session:         %.1f s\n", st.SessionDurationSeconds)
		}
		fmt.Fprintf(w, "Speed:           %.1f chars/min\n", st.CharactersPerMinute)
		fmt.Fprintf(w, "Median interval: %.0f ms\n", st.MedianInterval*1000)
		fmt.Fprintln(w)
	}

	if g.verbose {
		ir, as := report.Integrity(), report.Signals()
		forensics.PrintReport(w, &ir, &as)
	}

	if len(s.KeyFindings) > 0 {
		fmt.Fprintln(w, "--- Key Findings ---")
		for _, f := range s.KeyFindings {
			fmt.Fprintf(w, "  * %s\n", f)
		}
		fmt.Fprintln(w)
	}

	if len(s.Recommendations) > 0 {
		fmt.Fprintln(w, "--- Recommendations ---")
		for _, rec := range s.Recommendations {
			fmt.Fprintf(w, "  * %s\n", rec)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "================================================================================")
	return nil
}

func (g *ReportGenerator) writeCheck(w io.Writer, c checkLine) {
	if g.verbose {
		fmt.Fprintf(w, "[%s] %-24s %s\n", statusSymbol(c.Passed), c.Name, c.Message)
		return
	}
	fmt.Fprintf(w, "[%s] %s\n", statusSymbol(c.Passed), c.Name)
}

const markdownTemplate = `# Keystroke Provenance Verification Report

## Summary

| Property | Value |
|----------|-------|
| **Status** | {{.Summary.OverallStatus.Label}} |
| **Confidence** | {{.Summary.ConfidenceLevel}}/100 |
| **Document** | ` + "`{{.Doc.DocumentID}}`" + ` |
| **Content Length** | {{.Doc.ContentLength}} |
| **Events** | {{.Doc.EventCount}} |
| **Generated** | {{.Generated}} |

## Data Integrity

| Check | Result | Detail |
|-------|--------|--------|
{{range .Integrity}}| {{.Name}} | {{passFail .Passed}} | {{.Message}} |
{{end}}
## Authenticity Analysis

{{if .Insufficient}}_{{.InsufficientMessage}}_
{{else}}| Signal | Result | Detail |
|--------|--------|--------|
{{range .Authenticity}}| {{.Name}} | {{passFail .Passed}} | {{.Message}} |
{{end}}{{end}}
## Key Findings

{{range .Summary.KeyFindings}}- {{.}}
{{end}}{{if .Summary.Recommendations}}
## Recommendations

{{range .Summary.Recommendations}}- {{.}}
{{end}}{{end}}`

var mdTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"passFail": func(ok bool) string {
		if ok {
			return "PASS"
		}
		return "FAIL"
	},
}).Parse(markdownTemplate))

func (g *ReportGenerator) generateMarkdown(report *Report, w io.Writer) error {
	view := struct {
		Summary             Summary
		Doc                 DocumentInfo
		Generated           string
		Integrity           []checkLine
		Authenticity        []checkLine
		Insufficient        bool
		InsufficientMessage string
	}{
		Summary:             report.VerificationSummary,
		Doc:                 report.DocumentInfo,
		Generated:           report.GeneratedAt.Format(time.RFC3339),
		Integrity:           integrityLines(report),
		Authenticity:        authenticityLines(report),
		Insufficient:        report.AuthenticityAnalysis.InsufficientData,
		InsufficientMessage: report.AuthenticityAnalysis.NaturalTypingPatterns.Message,
	}
	return mdTemplate.Execute(w, view)
}

func statusSymbol(passed bool) string {
	if passed {
		return "OK"
	}
	return "!!"
}

func (g *ReportGenerator) truncateHash(hash string) string {
	if len(hash) <= 16 || g.verbose {
		return hash
	}
	return hash[:8] + "..." + hash[len(hash)-8:]
}

// OneLine generates a one-line summary of the report.
func (r *Report) OneLine() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(strings.ToUpper(string(r.VerificationSummary.OverallStatus)))
	sb.WriteString("]")
	fmt.Fprintf(&sb, " %s: %d/100 confidence", r.DocumentInfo.DocumentID, r.VerificationSummary.ConfidenceLevel)
	fmt.Fprintf(&sb, ", %d/4 integrity checks passed", r.integrityPassed())
	return sb.String()
}

func (r *Report) integrityPassed() int {
	n := 0
	for _, c := range integrityLines(r) {
		if c.Passed {
			n++
		}
	}
	return n
}
