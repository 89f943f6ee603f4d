package series

import (
	"math"

	"github.com/montanaflynn/stats"
)

// windowBounds returns the inclusive [lo, hi] positions of the window for
// position i. Trailing windows end at i; centered windows put window/2
// frames before i and the remainder after.
func windowBounds(i, n, window int, centered bool) (int, int) {
	var lo, hi int
	if centered {
		before := window / 2
		after := window - 1 - before
		lo, hi = i-before, i+after
	} else {
		lo, hi = i-window+1, i
	}
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}

// RollingNaNMean is a rolling mean with a minimum period of one: every
// frame gets the mean of the non-NaN values inside its window, or NaN if
// the window holds none. A window below 1 is treated as 1.
func RollingNaNMean(f Float, window int, centered bool) Float {
	if window < 1 {
		window = 1
	}
	n := len(f)
	sums := make([]float64, n+1)
	counts := make([]int, n+1)
	for i, v := range f {
		sums[i+1] = sums[i]
		counts[i+1] = counts[i]
		if !math.IsNaN(v) {
			sums[i+1] += v
			counts[i+1]++
		}
	}

	out := make(Float, n)
	for i := 0; i < n; i++ {
		lo, hi := windowBounds(i, n, window, centered)
		c := counts[hi+1] - counts[lo]
		if c == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (sums[hi+1] - sums[lo]) / float64(c)
	}
	return out
}

// RollingNaNMedian is a trailing rolling median that only emits a value
// once a full window of frames is available; earlier frames are NaN. NaN
// values inside a window are ignored, and a window with no valid values
// yields NaN.
func RollingNaNMedian(f Float, window int) Float {
	if window < 1 {
		window = 1
	}
	out := NaNs(len(f))
	buf := make(stats.Float64Data, 0, window)
	for i := window - 1; i < len(f); i++ {
		buf = buf[:0]
		for _, v := range f[i-window+1 : i+1] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			continue
		}
		m, err := stats.Median(buf)
		if err != nil {
			continue
		}
		out[i] = m
	}
	return out
}

// NaNMedian returns the median of the non-NaN values of f, or NaN.
func NaNMedian(f Float) float64 {
	vals := stats.Float64Data(DropNaN(f))
	if len(vals) == 0 {
		return math.NaN()
	}
	m, err := stats.Median(vals)
	if err != nil {
		return math.NaN()
	}
	return m
}
