// Package vote smooths a noisy per-frame boolean decision with majority
// voting. Three views are produced so a caller can trade responsiveness
// for stability:
//
//   - current: the raw decision
//   - rolling: majority over a trailing window ending at each frame
//   - binned:  majority over fixed bins of absolute frame numbers
//
// Ties always resolve to false, so every view is deterministic.
package vote

import (
	"fmt"

	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/series"
)

// Metric names one of the three decision views.
type Metric string

const (
	MetricCurrent Metric = "current"
	MetricRolling Metric = "rolling"
	MetricBinned  Metric = "binned"
)

// ValidMetrics lists the accepted metric names.
var ValidMetrics = []Metric{MetricCurrent, MetricRolling, MetricBinned}

// ParseMetric validates a metric name from configuration.
func ParseMetric(s string) (Metric, error) {
	for _, m := range ValidMetrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", outcome.Configf("vote", s, "is not a valid metric (want one of %v)", ValidMetrics)
}

// Decisions holds the three aligned views of one decision series.
type Decisions struct {
	Current series.Bool
	Rolling series.Bool
	Binned  series.Bool
}

// Select returns the view named by m.
func (d Decisions) Select(m Metric) (series.Bool, error) {
	switch m {
	case MetricCurrent:
		return d.Current, nil
	case MetricRolling:
		return d.Rolling, nil
	case MetricBinned:
		return d.Binned, nil
	}
	return nil, outcome.Configf("vote", string(m), "is not a valid metric (want one of %v)", ValidMetrics)
}

// Aggregate computes all three views of decision. frames gives the
// absolute frame number of each position and must be the same length.
func Aggregate(decision series.Bool, frames []int, windowFrames int) (Decisions, error) {
	if windowFrames <= 0 {
		return Decisions{}, outcome.Configf("vote", "", "window must be positive, got %d frames", windowFrames)
	}
	if len(frames) != len(decision) {
		return Decisions{}, fmt.Errorf("vote: %d frame numbers for %d decisions", len(frames), len(decision))
	}
	return Decisions{
		Current: decision.Clone(),
		Rolling: RollingMajority(decision, windowFrames),
		Binned:  BinnedMajority(decision, frames, windowFrames),
	}, nil
}

// majority is true only when trues strictly outnumber falses.
func majority(trues, total int) bool {
	return 2*trues > total
}

// RollingMajority gives each frame the majority value of the window of
// up to windowFrames frames ending at it. The first frames use however
// many frames are available.
func RollingMajority(s series.Bool, windowFrames int) series.Bool {
	if windowFrames < 1 {
		windowFrames = 1
	}
	out := make(series.Bool, len(s))
	trues := 0
	for i := range s {
		if s[i] {
			trues++
		}
		if j := i - windowFrames; j >= 0 && s[j] {
			trues--
		}
		total := windowFrames
		if i+1 < windowFrames {
			total = i + 1
		}
		out[i] = majority(trues, total)
	}
	return out
}

// binOf returns floor(frame / width), also for negative frame numbers.
func binOf(frame, width int) int {
	b := frame / width
	if frame%width != 0 && frame < 0 {
		b--
	}
	return b
}

// BinnedMajority splits the frames into bins [k*w, (k+1)*w) of absolute
// frame number and gives every frame in a bin the majority value over the
// frames of s that fall in that bin. frames must be ascending.
func BinnedMajority(s series.Bool, frames []int, windowFrames int) series.Bool {
	if windowFrames < 1 {
		windowFrames = 1
	}
	out := make(series.Bool, len(s))
	for lo := 0; lo < len(s); {
		bin := binOf(frames[lo], windowFrames)
		hi := lo
		trues := 0
		for hi < len(s) && binOf(frames[hi], windowFrames) == bin {
			if s[hi] {
				trues++
			}
			hi++
		}
		v := majority(trues, hi-lo)
		for i := lo; i < hi; i++ {
			out[i] = v
		}
		lo = hi
	}
	return out
}
