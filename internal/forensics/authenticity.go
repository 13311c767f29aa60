package forensics

import (
	"fmt"
	"math"

	"typeproof/internal/ledger"
)

// Analyzer scores the timing of KeyDown events for signs of organic typing.
type Analyzer struct {
	th Thresholds
}

// NewAnalyzer returns an analyzer using DefaultThresholds.
func NewAnalyzer() *Analyzer {
	return &Analyzer{th: DefaultThresholds()}
}

// NewAnalyzerWithThresholds returns an analyzer using th.
func NewAnalyzerWithThresholds(th Thresholds) *Analyzer {
	return &Analyzer{th: th}
}

// Analyze computes all authenticity signals for the ledger.
func (a *Analyzer) Analyze(l *ledger.Ledger) AuthenticitySignals {
	downs := l.KeyDowns()
	ts := make([]float64, len(downs))
	for i, ev := range downs {
		ts[i] = ev.Timestamp
	}
	return a.AnalyzeTimestamps(ts)
}

// AnalyzeTimestamps computes the signals from raw KeyDown timestamps in
// seconds. Order does not matter.
func (a *Analyzer) AnalyzeTimestamps(ts []float64) AuthenticitySignals {
	if len(ts) < a.th.MinSamples {
		return insufficient(len(ts), a.th.MinSamples)
	}

	iv := KeyDownIntervals(ts)
	mu := mean(iv)
	sigma := stdDev(iv, mu)

	return AuthenticitySignals{
		NaturalTypingPatterns: a.naturalness(iv, mu, sigma, len(ts)),
		TimingVariance:        a.variance(mu, sigma),
		PausePatterns:         a.pauses(iv),
		KeystrokeRhythm:       rhythm(iv),
	}
}

func insufficient(have, need int) AuthenticitySignals {
	msg := fmt.Sprintf("%s: %d keystrokes, need %d", MsgInsufficientData, have, need)
	return AuthenticitySignals{
		Insufficient: true,
		NaturalTypingPatterns: NaturalTypingPatterns{
			SampleCount: have,
			Message:     msg,
		},
		TimingVariance:  TimingVariance{Message: MsgInsufficientData},
		PausePatterns:   PausePatterns{Message: MsgInsufficientData},
		KeystrokeRhythm: KeystrokeRhythm{Message: MsgInsufficientData},
	}
}

func within(v, lo, hi float64) bool {
	return v > lo && v < hi
}

func (a *Analyzer) naturalness(iv []float64, mu, sigma float64, samples int) NaturalTypingPatterns {
	th := a.th
	varianceOK := within(sigma, th.StdDevMin, th.StdDevMax)
	speedOK := within(mu, th.MeanMin, th.MeanMax)

	var b ConfidenceBreakdown
	if varianceOK {
		b.Variance = 25
	}
	if speedOK {
		b.Speed = 25
	}

	_, _, _, short, medium, long := bucketShares(iv, th.DistShortMax, th.DistMediumMax)
	switch {
	case medium > th.DistMediumShare && short > th.DistShortShare && long < th.DistLongShare:
		b.Distribution = 25
	case medium > th.DistMediumAlone:
		b.Distribution = 15
	default:
		b.Distribution = 5
	}

	switch u := uniformity(iv, th.BucketWidth); {
	case u < th.UniformityHigh:
		b.Consistency = 25
	case u < th.UniformityPartial:
		b.Consistency = 15
	default:
		b.Consistency = 5
	}

	res := NaturalTypingPatterns{
		Detected:     varianceOK && speedOK,
		Confidence:   b.Total(),
		Breakdown:    b,
		MeanInterval: mu,
		StdDev:       sigma,
		SampleCount:  samples,
	}
	switch {
	case res.Detected:
		res.Message = fmt.Sprintf("natural typing rhythm (mean %.0fms, std dev %.0fms)", mu*1000, sigma*1000)
	case !varianceOK && sigma <= th.StdDevMin:
		res.Message = fmt.Sprintf("intervals are nearly uniform (std dev %.1fms)", sigma*1000)
	case !varianceOK:
		res.Message = fmt.Sprintf("interval variance is implausibly high (std dev %.2fs)", sigma)
	default:
		res.Message = fmt.Sprintf("typing pace is implausible (mean interval %.3fs)", mu)
	}
	return res
}

func (a *Analyzer) variance(mu, sigma float64) TimingVariance {
	var cv float64
	if mu != 0 {
		cv = sigma / mu
	}
	res := TimingVariance{
		CoefficientOfVariation: cv,
		NaturalVariance:        within(cv, a.th.CVMin, a.th.CVMax),
	}
	if res.NaturalVariance {
		res.Message = fmt.Sprintf("coefficient of variation %.2f is within the human range", cv)
	} else {
		res.Message = fmt.Sprintf("coefficient of variation %.2f is outside (%.1f, %.1f)", cv, a.th.CVMin, a.th.CVMax)
	}
	return res
}

func (a *Analyzer) pauses(iv []float64) PausePatterns {
	th := a.th
	var res PausePatterns
	res.ShortPauses, res.MediumPauses, res.LongPauses, res.ShortRatio, res.MediumRatio, res.LongRatio =
		bucketShares(iv, th.PauseShortMax, th.PauseMediumMax)
	res.NaturalPattern = res.ShortRatio > th.PauseShortShare &&
		res.MediumRatio > th.PauseMediumShare &&
		res.LongRatio < th.PauseLongShare

	if res.NaturalPattern {
		res.Message = "mostly short gaps with occasional pauses"
	} else {
		res.Message = fmt.Sprintf("unusual pause mix: %.0f%% short, %.0f%% medium, %.0f%% long",
			res.ShortRatio*100, res.MediumRatio*100, res.LongRatio*100)
	}
	return res
}

func rhythm(iv []float64) KeystrokeRhythm {
	m := median(iv)
	res := KeystrokeRhythm{MedianInterval: m}
	if m <= 0 {
		res.Message = "median interval is zero"
		return res
	}
	res.MedianAbsDev = medianAbsDev(iv, m)
	res.RhythmScore = math.Max(0, (1-res.MedianAbsDev/m)*100)
	res.Message = fmt.Sprintf("rhythm consistency %.0f/100", res.RhythmScore)
	return res
}
