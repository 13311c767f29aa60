// Package timeline groups a keystroke ledger into writing-session commits for
// timeline display. Its output is presentation only and never feeds back into
// verification.
package timeline

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"typeproof/internal/keystroke"
)

// CommitType classifies a commit.
type CommitType string

const (
	CommitTyping     CommitType = "typing"
	CommitPause      CommitType = "pause"
	CommitCorrection CommitType = "correction"
	CommitMilestone  CommitType = "milestone"
)

// BranchType classifies the edge between two commits.
type BranchType string

const (
	BranchMain       BranchType = "main"
	BranchCorrection BranchType = "correction"
	BranchPause      BranchType = "pause"
)

// Intensity bounds.
const (
	MinIntensity = 0.5
	MaxIntensity = 3.0
)

// Oversized commits hold more events than this and may be split for display.
const splitMinEvents = 50

const maxSplitParts = 3

// Position is a point on the layout canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Commit is one contiguous burst of typing, or a pause marker.
type Commit struct {
	ID             string     `json:"id"`
	Timestamp      float64    `json:"timestamp"`
	Type           CommitType `json:"type"`
	KeystrokeCount int        `json:"keystroke_count"`
	BackspaceCount int        `json:"backspace_count"`
	DurationMs     float64    `json:"duration_ms"`
	Intensity      float64    `json:"intensity"`
	Position       Position   `json:"position"`
	Synthetic      bool       `json:"synthetic,omitempty"`
}

// Branch connects two consecutive commits.
type Branch struct {
	ID        string     `json:"id"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Type      BranchType `json:"type"`
	Intensity float64    `json:"intensity"`
}

// Result is the segmented timeline.
type Result struct {
	Commits     []Commit `json:"commits"`
	Branches    []Branch `json:"branches"`
	ThresholdMs float64  `json:"threshold_ms"`
}

// Options controls Segment.
type Options struct {
	MaxCommits           int     // Keep at most this many of the latest commits; 0 keeps all (default: 50)
	PauseThresholdBaseMs float64 // Gap that closes a commit before adaptation (default: 2000)
	CanvasWidth          float64 // default: 1200
	CanvasHeight         float64 // default: 600
	MinCommits           int     // Split oversized commits until at least this many exist (default: 8)
	SplitOversized       bool    // Enables the presentation split (default: true)
}

// DefaultOptions returns the default segmentation options.
func DefaultOptions() Options {
	return Options{
		MaxCommits:           50,
		PauseThresholdBaseMs: 2000,
		CanvasWidth:          1200,
		CanvasHeight:         600,
		MinCommits:           8,
		SplitOversized:       true,
	}
}

// AdaptiveThreshold returns the pause threshold in milliseconds for a
// session spanning spanMs. Short sessions get a finer threshold.
func AdaptiveThreshold(spanMs, baseMs float64) float64 {
	switch {
	case spanMs < 30_000:
		return math.Max(200, baseMs*0.4)
	case spanMs < 120_000:
		return math.Max(300, baseMs*0.6)
	default:
		return baseMs
	}
}

func clampIntensity(v float64) float64 {
	return math.Min(MaxIntensity, math.Max(MinIntensity, v))
}

// Segment groups the KeyDown events into commits and lays them out. events
// should be the ordered ledger view; they are re-sorted by sequence number.
func Segment(events []keystroke.Event, opts Options) Result {
	downs := make([]keystroke.Event, 0, len(events))
	for _, ev := range events {
		if ev.Type == keystroke.KeyDown {
			downs = append(downs, ev)
		}
	}
	sort.SliceStable(downs, func(i, j int) bool { return downs[i].Sequence < downs[j].Sequence })

	res := Result{Commits: []Commit{}, Branches: []Branch{}}
	if len(downs) == 0 {
		res.ThresholdMs = opts.PauseThresholdBaseMs
		return res
	}

	threshold := AdaptiveThreshold(sessionSpanMs(events), opts.PauseThresholdBaseMs)
	res.ThresholdMs = threshold

	commits := group(downs, threshold)
	if opts.SplitOversized {
		commits = splitOversized(commits, opts.MinCommits)
	}
	if opts.MaxCommits > 0 && len(commits) > opts.MaxCommits {
		commits = commits[len(commits)-opts.MaxCommits:]
	}

	for i := range commits {
		commits[i].ID = fmt.Sprintf("commit-%d", i)
	}
	layout(commits, opts.CanvasWidth, opts.CanvasHeight)

	res.Commits = commits
	res.Branches = branches(commits)
	return res
}

// sessionSpanMs is the span covered by every event, KeyUps and pastes
// included.
func sessionSpanMs(events []keystroke.Event) float64 {
	first, last := events[0].Timestamp, events[0].Timestamp
	for _, ev := range events[1:] {
		first = math.Min(first, ev.Timestamp)
		last = math.Max(last, ev.Timestamp)
	}
	return (last - first) * 1000
}

func group(downs []keystroke.Event, threshold float64) []Commit {
	var commits []Commit
	start := 0
	for i := 1; i < len(downs); i++ {
		gap := (downs[i].Timestamp - downs[i-1].Timestamp) * 1000
		if gap <= threshold {
			continue
		}
		commits = append(commits, closeGroup(downs[start:i], threshold))
		if gap > 2*threshold {
			commits = append(commits, Commit{
				Timestamp:  downs[i-1].Timestamp,
				Type:       CommitPause,
				DurationMs: gap,
				Intensity:  MinIntensity,
			})
		}
		start = i
	}
	return append(commits, closeGroup(downs[start:], threshold))
}

func closeGroup(g []keystroke.Event, threshold float64) Commit {
	n := len(g)
	backspaces := 0
	for _, ev := range g {
		if keystroke.IsBackspace(ev) {
			backspaces++
		}
	}
	duration := (g[n-1].Timestamp - g[0].Timestamp) * 1000
	if duration < 0 {
		duration = 0
	}
	fraction := float64(backspaces) / float64(n)

	c := Commit{
		Timestamp:      g[0].Timestamp,
		KeystrokeCount: n,
		BackspaceCount: backspaces,
		DurationMs:     duration,
	}
	switch {
	case fraction > 0.3:
		c.Type = CommitCorrection
	case duration > threshold/2:
		c.Type = CommitMilestone
	default:
		c.Type = CommitTyping
	}

	kps := float64(n)
	if duration > 0 {
		kps = float64(n) / (duration / 1000)
	}
	c.Intensity = clampIntensity(kps/2 + fraction)
	return c
}

// splitOversized breaks large commits into at most maxSplitParts synthetic
// parts each until minCommits is reached or nothing is left to split.
// Synthetic parts are never split again.
func splitOversized(commits []Commit, minCommits int) []Commit {
	for len(commits) < minCommits {
		idx := -1
		for i, c := range commits {
			if c.Type != CommitPause && !c.Synthetic && c.KeystrokeCount > splitMinEvents {
				idx = i
				break
			}
		}
		if idx < 0 {
			return commits
		}

		parts := minCommits - len(commits) + 1
		if parts > maxSplitParts {
			parts = maxSplitParts
		}
		if parts < 2 {
			parts = 2
		}

		sub := split(commits[idx], parts)
		out := make([]Commit, 0, len(commits)+len(sub)-1)
		out = append(out, commits[:idx]...)
		out = append(out, sub...)
		out = append(out, commits[idx+1:]...)
		commits = out
	}
	return commits
}

func split(c Commit, parts int) []Commit {
	out := make([]Commit, 0, parts)
	n := c.KeystrokeCount
	base := n / parts
	offsetMs := 0.0
	for p := 0; p < parts; p++ {
		count := base
		if p == parts-1 {
			count = n - base*(parts-1)
		}
		share := float64(count) / float64(n)
		dur := c.DurationMs * share
		out = append(out, Commit{
			Timestamp:      c.Timestamp + offsetMs/1000,
			Type:           c.Type,
			KeystrokeCount: count,
			BackspaceCount: c.BackspaceCount * count / n,
			DurationMs:     dur,
			Intensity:      clampIntensity(c.Intensity * share * float64(parts)),
			Synthetic:      true,
		})
		offsetMs += dur
	}
	return out
}

func lane(t CommitType) int {
	switch t {
	case CommitTyping:
		return 0
	case CommitMilestone:
		return 1
	case CommitCorrection:
		return 2
	default:
		return 3
	}
}

// jitter returns a reproducible value in [0,1) for the commit at index i.
func jitter(i int, ts float64, salt byte) float64 {
	h := fnv.New64a()
	var buf [17]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(i))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(ts))
	buf[16] = salt
	h.Write(buf[:])
	return float64(h.Sum64()>>11) / float64(1<<53)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func layout(commits []Commit, width, height float64) {
	if math.IsNaN(width) || math.IsInf(width, 0) || width < 0 {
		width = 0
	}
	if math.IsNaN(height) || math.IsInf(height, 0) || height < 0 {
		height = 0
	}

	n := len(commits)
	margin := math.Min(40, width*0.05)
	usable := width - 2*margin
	step := 0.0
	if n > 1 {
		step = usable / float64(n-1)
	}
	laneHeight := height / 4

	for i := range commits {
		c := &commits[i]
		x := width / 2
		if n > 1 {
			x = margin + step*float64(i)
		}
		x += (jitter(i, c.Timestamp, 'x') - 0.5) * step * 0.3

		y := laneHeight*(float64(lane(c.Type))+0.5) + (jitter(i, c.Timestamp, 'y')-0.5)*laneHeight*0.4

		c.Position = Position{X: clamp(x, 0, width), Y: clamp(y, 0, height)}
	}
}

func branches(commits []Commit) []Branch {
	out := make([]Branch, 0, len(commits))
	for i := 1; i < len(commits); i++ {
		from, to := commits[i-1], commits[i]
		b := Branch{
			ID:        fmt.Sprintf("branch-%d", i-1),
			From:      from.ID,
			To:        to.ID,
			Type:      BranchMain,
			Intensity: to.Intensity,
		}
		switch {
		case from.Type == CommitPause || to.Type == CommitPause:
			b.Type = BranchPause
		case to.Type == CommitCorrection:
			b.Type = BranchCorrection
		}
		out = append(out, b)
	}
	return out
}
