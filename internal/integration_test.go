// Package internal provides integration tests for the keystroke provenance
// pipeline.
//
// These tests drive the complete flow against a real SQLite ledger:
// 1. Ingest raw client batches, including retransmitted overlap
// 2. Reopen the ledger and replay it into text
// 3. Verify the text and validate the rendered report against its schema
// 4. Segment the same ledger into a timeline
package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"typeproof/internal/cache"
	"typeproof/internal/keystroke"
	"typeproof/internal/provenance"
	"typeproof/internal/store"
	"typeproof/internal/timeline"
	"typeproof/internal/verify"
)

const manuscript = "It was a bright cold day in April, and the clocks were striking thirteen."

// humanBatch types text with varied gaps and one long pause halfway through.
// Each rune yields a keydown and a keyup; sequence numbers start at 0.
func humanBatch(text string) []keystroke.RawEvent {
	gaps := []float64{110, 160, 240, 310, 190, 370, 140, 760, 260, 1400}
	runes := []rune(text)
	out := make([]keystroke.RawEvent, 0, 2*len(runes))
	ts := 0.0
	for i, r := range runes {
		if i > 0 {
			ts += gaps[(i-1)%len(gaps)]
		}
		if i == len(runes)/2 {
			ts += 6000
		}
		out = append(out,
			keystroke.RawEvent{
				"event_type":      "keydown",
				"key_code":        "65",
				"character":       string(r),
				"timestamp":       ts,
				"sequence_number": float64(2 * i),
				"cursor_position": float64(i),
			},
			keystroke.RawEvent{
				"event_type":      "keyup",
				"key_code":        "65",
				"timestamp":       ts + 45,
				"sequence_number": float64(2*i + 1),
			},
		)
	}
	return out
}

// roboticBatch types text at a perfectly constant 100ms cadence.
func roboticBatch(text string) []keystroke.RawEvent {
	var out []keystroke.RawEvent
	for i, r := range []rune(text) {
		out = append(out, keystroke.RawEvent{
			"event_type":      "keydown",
			"key_code":        "65",
			"character":       string(r),
			"timestamp":       float64(i * 100),
			"sequence_number": float64(2 * i),
			"cursor_position": float64(i),
		}, keystroke.RawEvent{
			"event_type":      "keyup",
			"key_code":        "65",
			"timestamp":       float64(i*100 + 30),
			"sequence_number": float64(2*i + 1),
		})
	}
	return out
}

func openEngine(t *testing.T, path string, opts ...provenance.Option) *provenance.Engine {
	t.Helper()
	s, err := store.OpenSQLite(path, store.Limits{})
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	e := provenance.New(s, opts...)
	t.Cleanup(func() { e.Close() })
	return e
}

// =============================================================================
// INTEGRATION: Full Provenance Pipeline
// =============================================================================

// TestFullProvenancePipeline tests the flow from batched ingestion through
// persistence, replay, verification and schema validation.
func TestFullProvenancePipeline(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	events := humanBatch(manuscript)

	// Step 1: Ingest in three overlapping batches, as a client retrying
	// after a timeout would.
	engine := openEngine(t, dbPath)
	third := len(events) / 3
	batches := [][]keystroke.RawEvent{
		events[:third+4],
		events[third : 2*third],
		events[2*third-6:],
	}
	appended := 0
	for i, b := range batches {
		res, err := engine.Ingest(ctx, "manuscript", b)
		if err != nil {
			t.Fatalf("Batch %d failed: %v", i, err)
		}
		appended += res.Appended
		t.Logf("Batch %d: appended=%d duplicate=%d", i, res.Appended, res.SkippedDuplicate)
	}
	if appended != len(events) {
		t.Fatalf("Appended %d events, want %d", appended, len(events))
	}

	// Step 2: Reopen the ledger and replay it.
	if err := engine.Close(); err != nil {
		t.Fatalf("Failed to close engine: %v", err)
	}
	engine = openEngine(t, dbPath, provenance.WithCache(cache.NewMemoryCache()))

	text, err := engine.Reconstruct(ctx, "manuscript")
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if text != manuscript {
		t.Fatalf("Reconstructed %q, want %q", text, manuscript)
	}

	// Step 3: Verify.
	report, err := engine.Verify(ctx, "manuscript", manuscript)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if report.Status() != verify.StatusHighConfidence {
		t.Fatalf("Status = %s (confidence %d), findings: %v",
			report.Status(), report.Confidence(), report.VerificationSummary.KeyFindings)
	}
	if !report.DocumentInfo.ReconstructionMatch {
		t.Fatal("Reconstruction should match the submitted content")
	}

	// Step 4: Render and validate against the checked-in schema.
	var buf bytes.Buffer
	if err := verify.NewReportGenerator(verify.FormatJSON).Generate(report, &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	validateInstance(t, filepath.Join(repoRoot(t), "internal", "verify", "report.schema.json"), buf.Bytes())

	// Step 5: The cached report is identical.
	again, err := engine.Verify(ctx, "manuscript", manuscript)
	if err != nil {
		t.Fatalf("Second verify failed: %v", err)
	}
	if again.DocumentInfo.LedgerDigest != report.DocumentInfo.LedgerDigest {
		t.Fatal("Ledger digest changed between identical verifications")
	}
	t.Logf("Report: %s", report.OneLine())
}

// TestTimelineMatchesLedger checks that segmentation accounts for every
// KeyDown and separates the long pause.
func TestTimelineMatchesLedger(t *testing.T) {
	ctx := context.Background()
	engine := openEngine(t, filepath.Join(t.TempDir(), "ledger.db"))

	if _, err := engine.Ingest(ctx, "manuscript", humanBatch(manuscript)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	opts := timeline.DefaultOptions()
	opts.MaxCommits = 0
	opts.SplitOversized = false
	res, err := engine.Timeline(ctx, "manuscript", &opts)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}

	keys, pauses := 0, 0
	for _, c := range res.Commits {
		keys += c.KeystrokeCount
		if c.Type == timeline.CommitPause {
			pauses++
		}
	}
	if keys != len([]rune(manuscript)) {
		t.Fatalf("Timeline covers %d keystrokes, want %d", keys, len([]rune(manuscript)))
	}
	if pauses == 0 {
		t.Fatal("Expected the 6 second gap to produce a pause commit")
	}
	if len(res.Branches) != len(res.Commits)-1 {
		t.Fatalf("Got %d branches for %d commits", len(res.Branches), len(res.Commits))
	}
}

// =============================================================================
// INTEGRATION: Tamper and Automation Detection
// =============================================================================

// TestTamperDetectionGaps drops a run of events from the stream.
func TestTamperDetectionGaps(t *testing.T) {
	ctx := context.Background()
	engine := openEngine(t, filepath.Join(t.TempDir(), "ledger.db"))

	events := humanBatch(manuscript)
	tampered := append(append([]keystroke.RawEvent{}, events[:10]...), events[15:]...)
	if _, err := engine.Ingest(ctx, "tampered", tampered); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	report, err := engine.Verify(ctx, "tampered", manuscript)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	seq := report.DataIntegrity.SequenceIntegrity
	if seq.Valid || seq.MissingCount != 5 {
		t.Fatalf("Sequence check = %+v, want 5 missing", seq)
	}
	if report.DocumentInfo.ReconstructionMatch {
		t.Fatal("Dropped keystrokes should break reconstruction")
	}
	if report.Confidence() >= 100 {
		t.Fatalf("Confidence %d should be reduced", report.Confidence())
	}
}

// TestAutomationDetection types at a machine-constant cadence.
func TestAutomationDetection(t *testing.T) {
	ctx := context.Background()
	engine := openEngine(t, filepath.Join(t.TempDir(), "ledger.db"))

	if _, err := engine.Ingest(ctx, "bot", roboticBatch(manuscript)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	report, err := engine.Verify(ctx, "bot", manuscript)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	a := report.AuthenticityAnalysis
	if a.NaturalTypingPatterns.Detected || a.TimingVariance.NaturalVariance || a.PausePatterns.NaturalPattern {
		t.Fatalf("Constant cadence passed an authenticity signal: %+v", a)
	}
	if report.Confidence() != 40 {
		t.Fatalf("Confidence = %d, want 40 (integrity only)", report.Confidence())
	}
	if report.Status() != verify.StatusQuestionable {
		t.Fatalf("Status = %s, want %s", report.Status(), verify.StatusQuestionable)
	}
	if !strings.Contains(a.NaturalTypingPatterns.Message, "uniform") {
		t.Fatalf("Naturalness message = %q", a.NaturalTypingPatterns.Message)
	}
}

// TestEmptyLedgerVerification verifies a document nothing was typed into.
func TestEmptyLedgerVerification(t *testing.T) {
	engine := openEngine(t, filepath.Join(t.TempDir(), "ledger.db"))

	report, err := engine.Verify(context.Background(), "ghost", "pasted text")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if report.Status() != verify.StatusUnverified {
		t.Fatalf("Status = %s, want unverified", report.Status())
	}
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := verify.ValidateJSON(data); err != nil {
		t.Fatalf("Empty report fails its schema: %v", err)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func validateInstance(t *testing.T, schemaPath string, instanceData []byte) {
	t.Helper()
	var instance any
	if err := json.Unmarshal(instanceData, &instance); err != nil {
		t.Fatalf("unmarshal instance: %v", err)
	}

	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaPath, bytes.NewReader(schemaData)); err != nil {
		t.Fatalf("add schema resource: %v", err)
	}
	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	if err := schema.Validate(instance); err != nil {
		t.Fatalf("schema validation failed: %v", err)
	}
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("unable to resolve caller path")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), ".."))
}
