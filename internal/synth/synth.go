// Package synth generates synthetic keystroke streams for a given text.
//
// Streams follow a typing profile: log-normal inter-key gaps, occasional
// fast bursts, thinking pauses, typos corrected with backspace and, for
// some profiles, pasted words. They exercise ingestion, replay and the
// authenticity analysis without manual typing.
package synth

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
	"unicode"

	"typeproof/internal/keystroke"
)

// Profile defines parameters for simulating one typing behavior.
type Profile struct {
	Name        string
	Description string

	MedianIntervalMs float64 // Median gap between KeyDowns
	IntervalStdDevMs float64 // Spread of the gap; 0 gives a constant cadence
	BurstProbability float64 // Chance a KeyDown starts a fast burst
	BurstIntervalMs  float64 // Gap during bursts
	PauseProbability float64 // Chance of a thinking pause before a KeyDown
	PauseMaxMs       float64 // Longest thinking pause
	TypoProbability  float64 // Chance of a wrong key followed by backspace
	PasteProbability float64 // Chance a word is pasted instead of typed
	KeyHoldMs        float64 // KeyDown to KeyUp
}

var profiles = map[string]Profile{
	"normal": {
		Name:             "normal",
		Description:      "Typical human typing with natural variation",
		MedianIntervalMs: 180,
		IntervalStdDevMs: 120,
		BurstProbability: 0.08,
		BurstIntervalMs:  90,
		PauseProbability: 0.04,
		PauseMaxMs:       3000,
		TypoProbability:  0.03,
		KeyHoldMs:        80,
	},
	"fast-typist": {
		Name:             "fast-typist",
		Description:      "Experienced typist with quick, consistent pace",
		MedianIntervalMs: 110,
		IntervalStdDevMs: 60,
		BurstProbability: 0.15,
		BurstIntervalMs:  70,
		PauseProbability: 0.02,
		PauseMaxMs:       1500,
		TypoProbability:  0.02,
		KeyHoldMs:        60,
	},
	"slow-thoughtful": {
		Name:             "slow-thoughtful",
		Description:      "Careful, deliberate writing with many pauses",
		MedianIntervalMs: 350,
		IntervalStdDevMs: 250,
		BurstProbability: 0.02,
		BurstIntervalMs:  200,
		PauseProbability: 0.10,
		PauseMaxMs:       8000,
		TypoProbability:  0.05,
		KeyHoldMs:        110,
	},
	"paste-heavy": {
		Name:             "paste-heavy",
		Description:      "Mix of typing and pasted words",
		MedianIntervalMs: 200,
		IntervalStdDevMs: 140,
		BurstProbability: 0.05,
		BurstIntervalMs:  90,
		PauseProbability: 0.05,
		PauseMaxMs:       4000,
		TypoProbability:  0.02,
		PasteProbability: 0.3,
		KeyHoldMs:        80,
	},
	"robotic": {
		Name:             "robotic",
		Description:      "Scripted input at a constant cadence",
		MedianIntervalMs: 100,
		KeyHoldMs:        30,
	},
}

// Lookup returns the named profile.
func Lookup(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (available: %v)", name, ProfileNames())
	}
	return p, nil
}

// ProfileNames lists the built-in profiles in name order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options controls Generate.
type Options struct {
	Profile Profile
	Seed    int64

	// Start anchors timestamps as epoch milliseconds. The zero value emits
	// relative milliseconds from 0.
	Start time.Time

	FirstSequence uint64
	KeyUps        bool // emit a KeyUp after every KeyDown
}

type generator struct {
	rng  *rand.Rand
	opts Options
	p    Profile

	out     []keystroke.RawEvent
	now     float64
	seq     uint64
	cursor  int
	burst   int
	pending keystroke.RawEvent // KeyUp of the last KeyDown
}

// Generate produces raw events that type text. Replaying the result
// reproduces text exactly unless the profile pastes words.
func Generate(text string, opts Options) []keystroke.RawEvent {
	g := &generator{
		rng:  rand.New(rand.NewSource(opts.Seed)),
		opts: opts,
		p:    opts.Profile,
		seq:  opts.FirstSequence,
	}
	if !opts.Start.IsZero() {
		g.now = float64(opts.Start.UnixMilli())
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if g.p.PasteProbability > 0 && startsWord(runes, i) && g.rng.Float64() < g.p.PasteProbability {
			end := wordEnd(runes, i)
			g.paste(string(runes[i:end]))
			i = end - 1
			continue
		}
		if g.p.TypoProbability > 0 && unicode.IsLetter(runes[i]) && g.rng.Float64() < g.p.TypoProbability {
			g.key(typoFor(runes[i]), "65")
			g.key(0, "8")
		}
		g.key(runes[i], keyCode(runes[i]))
	}
	g.flush()
	return g.out
}

// advance moves the clock to the next key press, first flushing the
// previous key's release so it never lands after this press.
func (g *generator) advance() {
	if len(g.out) == 0 && g.pending == nil {
		return
	}
	next := g.now + g.interval()
	if g.pending != nil {
		up := g.pending
		g.pending = nil
		if ts := up[keystroke.FieldTimestamp].(float64); ts > next {
			up[keystroke.FieldTimestamp] = next
		}
		g.emit(up)
	}
	g.now = next
}

// interval mirrors a typist's gap distribution: bursts, thinking pauses,
// otherwise log-normal around the median.
func (g *generator) interval() float64 {
	p := g.p
	if p.IntervalStdDevMs == 0 {
		return p.MedianIntervalMs
	}
	switch {
	case g.burst > 0:
		g.burst--
		return p.BurstIntervalMs * (0.5 + g.rng.Float64())
	case g.rng.Float64() < p.PauseProbability:
		return p.MedianIntervalMs + g.rng.Float64()*p.PauseMaxMs
	case g.rng.Float64() < p.BurstProbability:
		g.burst = 3 + g.rng.Intn(10)
		return p.BurstIntervalMs * (0.5 + g.rng.Float64())
	default:
		return logNormalSample(g.rng, p.MedianIntervalMs, p.IntervalStdDevMs)
	}
}

// key emits a KeyDown and queues its KeyUp. r == 0 means backspace.
func (g *generator) key(r rune, code string) {
	g.advance()
	down := keystroke.RawEvent{
		keystroke.FieldEventType: string(keystroke.KeyDown),
		keystroke.FieldKeyCode:   code,
		keystroke.FieldTimestamp: g.now,
		keystroke.FieldCursor:    float64(g.cursor),
	}
	if r == 0 {
		down[keystroke.FieldCharacter] = "Backspace"
		if g.cursor > 0 {
			g.cursor--
		}
	} else {
		down[keystroke.FieldCharacter] = string(r)
		g.cursor++
	}
	g.emit(down)

	if g.opts.KeyUps {
		g.pending = keystroke.RawEvent{
			keystroke.FieldEventType: string(keystroke.KeyUp),
			keystroke.FieldKeyCode:   code,
			keystroke.FieldTimestamp: g.now + g.p.KeyHoldMs*(0.6+0.4*g.rng.Float64()),
		}
	}
}

func (g *generator) paste(word string) {
	g.advance()
	g.emit(keystroke.RawEvent{
		keystroke.FieldEventType: string(keystroke.Paste),
		keystroke.FieldKeyCode:   "86",
		keystroke.FieldCharacter: word,
		keystroke.FieldTimestamp: g.now,
		keystroke.FieldCursor:    float64(g.cursor),
	})
	g.cursor += len([]rune(word))
}

func (g *generator) flush() {
	if g.pending != nil {
		g.emit(g.pending)
		g.pending = nil
	}
}

func (g *generator) emit(ev keystroke.RawEvent) {
	ev[keystroke.FieldSequence] = float64(g.seq)
	g.seq++
	g.out = append(g.out, ev)
}

// logNormalSample draws from a log-normal distribution with the given
// median and approximate spread.
func logNormalSample(rng *rand.Rand, median, stdDev float64) float64 {
	mu := math.Log(median)
	sigma := math.Log(1 + stdDev/median)
	if sigma < 0.1 {
		sigma = 0.1
	}
	return math.Exp(mu + sigma*rng.NormFloat64())
}

func startsWord(runes []rune, i int) bool {
	return unicode.IsLetter(runes[i]) && (i == 0 || !unicode.IsLetter(runes[i-1]))
}

func wordEnd(runes []rune, i int) int {
	for i < len(runes) && unicode.IsLetter(runes[i]) {
		i++
	}
	return i
}

func typoFor(r rune) rune {
	if r == 'x' || r == 'X' {
		return 'z'
	}
	return 'x'
}

func keyCode(r rune) string {
	switch {
	case r == ' ':
		return "32"
	case r == '\n':
		return "13"
	case unicode.IsLetter(r) && r < unicode.MaxASCII:
		return fmt.Sprint(int(unicode.ToUpper(r)))
	default:
		return "0"
	}
}
