package synth

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeproof/internal/forensics"
	"typeproof/internal/keystroke"
	"typeproof/internal/replay"
)

const passage = "The archive held every draft she had ever written, and none of them were finished."

func normalize(t *testing.T, raws []keystroke.RawEvent) []keystroke.Event {
	t.Helper()
	out := make([]keystroke.Event, 0, len(raws))
	for i, raw := range raws {
		ev, err := keystroke.Normalize(raw)
		require.NoError(t, err, "event %d", i)
		out = append(out, ev)
	}
	return out
}

func mustProfile(t *testing.T, name string) Profile {
	t.Helper()
	p, err := Lookup(name)
	require.NoError(t, err)
	return p
}

func TestLookup(t *testing.T) {
	for _, name := range ProfileNames() {
		p, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name)
		assert.NotEmpty(t, p.Description)
	}

	_, err := Lookup("telepathic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normal")
}

func TestGenerateReplaysToText(t *testing.T) {
	for _, name := range []string{"normal", "fast-typist", "slow-thoughtful", "robotic"} {
		t.Run(name, func(t *testing.T) {
			events := normalize(t, Generate(passage, Options{Profile: mustProfile(t, name), Seed: 7, KeyUps: true}))
			assert.Equal(t, passage, replay.Reconstruct(events))
		})
	}
}

func TestGenerateTyposAreCorrected(t *testing.T) {
	p := mustProfile(t, "normal")
	p.TypoProbability = 1

	events := normalize(t, Generate("abc", Options{Profile: p, Seed: 1}))
	require.Len(t, events, 9)
	assert.Equal(t, "abc", replay.Reconstruct(events))

	stats := replay.Summarize(events)
	assert.Equal(t, 3, stats.Backspaces)
	assert.Equal(t, 6, stats.Inserted)
}

func TestGenerateSequencesAreContiguous(t *testing.T) {
	raws := Generate(passage, Options{Profile: mustProfile(t, "normal"), Seed: 3, KeyUps: true, FirstSequence: 100})
	events := normalize(t, raws)
	for i, ev := range events {
		assert.Equal(t, uint64(100+i), ev.Sequence)
	}
}

func TestGenerateTimestampsNonDecreasing(t *testing.T) {
	events := normalize(t, Generate(passage, Options{Profile: mustProfile(t, "slow-thoughtful"), Seed: 11, KeyUps: true}))
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Timestamp, events[i-1].Timestamp)
	}
}

func TestGenerateEpochTimestamps(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	raws := Generate("hi", Options{Profile: mustProfile(t, "robotic"), Start: start})

	events := normalize(t, raws)
	require.Len(t, events, 2)
	assert.InDelta(t, 1_700_000_000.0, events[0].Timestamp, 1e-6)
	assert.InDelta(t, 0.1, events[1].Timestamp-events[0].Timestamp, 1e-6)
}

func TestGenerateDeterministic(t *testing.T) {
	opts := Options{Profile: mustProfile(t, "normal"), Seed: 42, KeyUps: true}
	assert.Equal(t, Generate(passage, opts), Generate(passage, opts))

	opts2 := opts
	opts2.Seed = 43
	assert.NotEqual(t, Generate(passage, opts), Generate(passage, opts2))
}

func TestGeneratePasteLeavesGaps(t *testing.T) {
	p := mustProfile(t, "paste-heavy")
	p.PasteProbability = 1

	events := normalize(t, Generate("one two", Options{Profile: p, Seed: 1}))
	require.Len(t, events, 3)
	assert.Equal(t, keystroke.Paste, events[0].Type)
	assert.Equal(t, "one", events[0].Char())
	assert.Equal(t, " ", replay.Reconstruct(events))
}

func TestRoboticProfileLooksAutomated(t *testing.T) {
	events := normalize(t, Generate(strings.Repeat(passage, 2), Options{Profile: mustProfile(t, "robotic"), KeyUps: true}))

	var ts []float64
	for _, ev := range events {
		if ev.Type == keystroke.KeyDown {
			ts = append(ts, ev.Timestamp)
		}
	}
	signals := forensics.NewAnalyzer().AnalyzeTimestamps(ts)
	require.False(t, signals.Insufficient)
	assert.False(t, signals.NaturalTypingPatterns.Detected)
	assert.False(t, signals.TimingVariance.NaturalVariance)
}

func TestLogNormalSample(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	samples := make([]float64, 2001)
	for i := range samples {
		samples[i] = logNormalSample(rng, 180, 120)
		require.Positive(t, samples[i])
	}
	below := 0
	for _, s := range samples {
		if s < 180 {
			below++
		}
	}
	assert.InDelta(t, 0.5, float64(below)/float64(len(samples)), 0.05)
}
