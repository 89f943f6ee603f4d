package results

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/behaviour.report/internal/bouts"
	"github.com/banshee-data/behaviour.report/internal/series"
	"github.com/banshee-data/behaviour.report/internal/units"
)

// Summary statistic names.
const (
	StatCount          = "count"
	StatSum            = "sum"
	StatMean           = "mean"
	StatStd            = "std"
	StatMin            = "min"
	StatQ1             = "q1"
	StatMedian         = "median"
	StatQ3             = "q3"
	StatMax            = "max"
	StatBoutCount      = "bout_count"
	StatTotalFrames    = "total_frames"
	StatMeanBoutFrames = "mean_bout_frames"
	StatTotalSec       = "total_sec"
)

// SummaryRow is one statistic of one measure, over the whole recording
// (BinSec 0) or over bin number Bin of BinSec seconds. Custom rows come
// from user-given bin edges; their BinSec is the width of that bin.
type SummaryRow struct {
	Individual string  `csv:"individual"`
	Measure    string  `csv:"measure"`
	BinSec     float64 `csv:"bin_sec"`
	Bin        int     `csv:"bin"`
	Custom     bool    `csv:"custom"`
	Stat       string  `csv:"stat"`
	Value      float64 `csv:"value"`
}

type namedStat struct {
	name  string
	value float64
}

// quantStats summarises the non-NaN values of v. Quartiles use gonum's
// linear interpolation of the empirical distribution.
func quantStats(v series.Float) []namedStat {
	x := series.DropNaN(v)
	n := float64(len(x))
	if len(x) == 0 {
		nan := math.NaN()
		return []namedStat{
			{StatCount, 0}, {StatSum, 0}, {StatMean, nan}, {StatStd, nan},
			{StatMin, nan}, {StatQ1, nan}, {StatMedian, nan}, {StatQ3, nan}, {StatMax, nan},
		}
	}
	sort.Float64s(x)
	std := math.NaN()
	if len(x) > 1 {
		std = stat.StdDev(x, nil)
	}
	return []namedStat{
		{StatCount, n},
		{StatSum, floats.Sum(x)},
		{StatMean, stat.Mean(x, nil)},
		{StatStd, std},
		{StatMin, x[0]},
		{StatQ1, stat.Quantile(0.25, stat.LinInterp, x, nil)},
		{StatMedian, series.NaNMedian(x)},
		{StatQ3, stat.Quantile(0.75, stat.LinInterp, x, nil)},
		{StatMax, x[len(x)-1]},
	}
}

// flagStats summarises the true runs of a 0/1 series.
func flagStats(v series.Float, cal units.Calibration) []namedStat {
	s := v.Greater(0.5)
	bs := bouts.ExtractPositions(s)
	total := bouts.TotalFrames(bs)
	mean := math.NaN()
	if len(bs) > 0 {
		mean = float64(total) / float64(len(bs))
	}
	return []namedStat{
		{StatBoutCount, float64(len(bs))},
		{StatTotalFrames, float64(total)},
		{StatMeanBoutFrames, mean},
		{StatTotalSec, cal.Seconds(total)},
	}
}

func (t *Table) summariseRange(lo, hi int, binSec float64, bin int, cal units.Calibration) []*SummaryRow {
	var rows []*SummaryRow
	for i, m := range t.measures {
		v := t.values[i][lo:hi]
		var stats []namedStat
		if t.IsFlag(m) {
			stats = flagStats(v, cal)
		} else {
			stats = quantStats(v)
		}
		for _, s := range stats {
			rows = append(rows, &SummaryRow{
				Individual: m.Individual,
				Measure:    m.Name,
				BinSec:     binSec,
				Bin:        bin,
				Stat:       s.name,
				Value:      s.value,
			})
		}
	}
	return rows
}

// Summarise computes summary statistics of every measure over the whole
// table. Quantitative measures get count, sum, mean, std, min, quartiles
// and max; boolean measures get bout statistics.
func Summarise(t *Table, cal units.Calibration) []*SummaryRow {
	return t.summariseRange(0, t.Len(), 0, 0, cal)
}

// SummariseBinned computes the same statistics per consecutive bin of
// binSec seconds starting at the first frame. The last bin may be short.
func SummariseBinned(t *Table, cal units.Calibration, binSec float64) ([]*SummaryRow, error) {
	width := cal.FramesRounded(binSec)
	if width < 1 {
		return nil, fmt.Errorf("results: bin of %gs is shorter than one frame at %g fps", binSec, cal.FPS)
	}
	var rows []*SummaryRow
	for lo, bin := 0, 0; lo < t.Len(); lo, bin = lo+width, bin+1 {
		hi := lo + width
		if hi > t.Len() {
			hi = t.Len()
		}
		rows = append(rows, t.summariseRange(lo, hi, binSec, bin, cal)...)
	}
	return rows, nil
}

// SummariseCustomBins computes the statistics per bin between consecutive
// edges, given in seconds from the first frame. Bin i covers
// [edgesSec[i], edgesSec[i+1]). Edges past the end of the table give
// short or empty bins, which are still reported.
func SummariseCustomBins(t *Table, cal units.Calibration, edgesSec []float64) ([]*SummaryRow, error) {
	if len(edgesSec) < 2 {
		return nil, fmt.Errorf("results: custom bins need at least two edges, got %d", len(edgesSec))
	}
	for i, e := range edgesSec {
		if e < 0 {
			return nil, fmt.Errorf("results: custom bin edge %g is negative", e)
		}
		if i > 0 && e <= edgesSec[i-1] {
			return nil, fmt.Errorf("results: custom bin edges must ascend, got %g after %g", e, edgesSec[i-1])
		}
	}
	clamp := func(f int) int { return min(max(f, 0), t.Len()) }

	var rows []*SummaryRow
	for bin := 0; bin < len(edgesSec)-1; bin++ {
		lo := clamp(cal.FramesRounded(edgesSec[bin]))
		hi := clamp(cal.FramesRounded(edgesSec[bin+1]))
		binRows := t.summariseRange(lo, hi, edgesSec[bin+1]-edgesSec[bin], bin, cal)
		for _, r := range binRows {
			r.Custom = true
		}
		rows = append(rows, binRows...)
	}
	return rows, nil
}

// WriteSummariesCSV writes summary rows with a header row.
func WriteSummariesCSV(w io.Writer, rows []*SummaryRow) error {
	if rows == nil {
		rows = []*SummaryRow{}
	}
	return gocsv.Marshal(rows, w)
}

// ReadSummariesCSV reads rows written by WriteSummariesCSV.
func ReadSummariesCSV(r io.Reader) ([]*SummaryRow, error) {
	var rows []*SummaryRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("results: read summaries: %w", err)
	}
	return rows, nil
}
