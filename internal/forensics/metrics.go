package forensics

import (
	"math"
	"sort"
)

// intervals returns successive differences of ts, which must be sorted.
func intervals(ts []float64) []float64 {
	if len(ts) < 2 {
		return nil
	}
	out := make([]float64, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		out[i-1] = ts[i] - ts[i-1]
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the sample standard deviation (n-1 denominator).
func stdDev(values []float64, mu float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// median calculates the median of a slice of float64 values.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// medianAbsDev returns median(|x - m|).
func medianAbsDev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - m)
	}
	return median(dev)
}

// bucketShares splits values at two edges and returns the share of each
// bucket: below lo, in [lo, hi), and at or above hi.
func bucketShares(values []float64, lo, hi float64) (short, medium, long int, sShare, mShare, lShare float64) {
	for _, v := range values {
		switch {
		case v < lo:
			short++
		case v < hi:
			medium++
		default:
			long++
		}
	}
	if n := float64(len(values)); n > 0 {
		sShare = float64(short) / n
		mShare = float64(medium) / n
		lShare = float64(long) / n
	}
	return
}

// uniformity is the share of values falling in the most common bucket when
// rounded to the nearest multiple of width.
func uniformity(values []float64, width float64) float64 {
	if len(values) == 0 || width <= 0 {
		return 0
	}
	counts := make(map[int64]int)
	largest := 0
	for _, v := range values {
		k := int64(math.Round(v / width))
		counts[k]++
		if counts[k] > largest {
			largest = counts[k]
		}
	}
	return float64(largest) / float64(len(values))
}

// Summary is the descriptive statistics of an interval series, in seconds.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	CV     float64 `json:"coefficient_of_variation"`
}

// Summarize computes descriptive statistics over values.
func Summarize(values []float64) Summary {
	s := Summary{Count: len(values)}
	if len(values) == 0 {
		return s
	}
	s.Mean = mean(values)
	s.Median = median(values)
	s.StdDev = stdDev(values, s.Mean)
	s.Min, s.Max = values[0], values[0]
	for _, v := range values[1:] {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	if s.Mean != 0 {
		s.CV = s.StdDev / s.Mean
	}
	return s
}

// KeyDownIntervals returns the gaps in seconds between ascending KeyDown
// timestamps.
func KeyDownIntervals(ts []float64) []float64 {
	sorted := make([]float64, len(ts))
	copy(sorted, ts)
	sort.Float64s(sorted)
	return intervals(sorted)
}
