// Package bouts converts per-frame boolean series into tables of
// contiguous runs ("bouts") and back, and implements the two duration
// filters built on them: merging short gaps between bouts and discarding
// bouts that are too short.
package bouts

import "github.com/banshee-data/behaviour.report/internal/series"

// Bout is a maximal run of true frames. Start and Stop are inclusive frame
// numbers and Duration is the frame count, Stop - Start + 1.
type Bout struct {
	Start    int `json:"start" csv:"start"`
	Stop     int `json:"stop" csv:"stop"`
	Duration int `json:"duration" csv:"duration"`
}

// ExtractPositions scans s once and returns its bouts using 0-based
// positions as frame numbers.
func ExtractPositions(s series.Bool) []Bout {
	return Extract(s, nil)
}

// Extract scans s once and returns its bouts in ascending start order.
// frames maps positions to frame numbers; nil means positions are frame
// numbers. Out-of-range positions are treated as false.
func Extract(s series.Bool, frames []int) []Bout {
	var out []Bout
	frameAt := func(i int) int {
		if frames == nil {
			return i
		}
		return frames[i]
	}

	n := len(s)
	for i := 0; i < n; i++ {
		if !s[i] {
			continue
		}
		if i > 0 && s[i-1] {
			continue
		}
		j := i
		for j+1 < n && s[j+1] {
			j++
		}
		out = append(out, Bout{
			Start:    frameAt(i),
			Stop:     frameAt(j),
			Duration: j - i + 1,
		})
		i = j
	}
	return out
}

// ToSeries rebuilds the boolean series of length n whose true frames are
// exactly the given bouts. first is the frame number at position 0.
// Frames outside [first, first+n) are ignored.
func ToSeries(bs []Bout, first, n int) series.Bool {
	out := make(series.Bool, n)
	for _, b := range bs {
		setRange(out, b.Start-first, b.Stop-first, true)
	}
	return out
}

func setRange(s series.Bool, lo, hi int, v bool) {
	if lo < 0 {
		lo = 0
	}
	if hi > len(s)-1 {
		hi = len(s) - 1
	}
	for i := lo; i <= hi; i++ {
		s[i] = v
	}
}

// MergeShortGaps fills every false run shorter than minGapFrames with
// true, joining the bouts on either side. Runs at the very start or end of
// the series count as gaps too. Applying it twice with the same threshold
// is the same as applying it once.
func MergeShortGaps(s series.Bool, minGapFrames int) series.Bool {
	out := s.Clone()
	for _, gap := range ExtractPositions(s.Not()) {
		if gap.Duration < minGapFrames {
			setRange(out, gap.Start, gap.Stop, true)
		}
	}
	return out
}

// DropShortBouts resets every true run shorter than minFrames to false.
func DropShortBouts(s series.Bool, minFrames int) series.Bool {
	out := s.Clone()
	for _, b := range ExtractPositions(s) {
		if b.Duration < minFrames {
			setRange(out, b.Start, b.Stop, false)
		}
	}
	return out
}

// TotalFrames sums the durations of bs.
func TotalFrames(bs []Bout) int {
	n := 0
	for _, b := range bs {
		n += b.Duration
	}
	return n
}
