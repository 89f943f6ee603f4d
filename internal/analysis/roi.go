package analysis

import (
	"fmt"
	"math"

	"github.com/banshee-data/behaviour.report/internal/keypoints"
	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/results"
	"github.com/banshee-data/behaviour.report/internal/series"
	"github.com/banshee-data/behaviour.report/internal/units"
)

// ROIMode selects how the arena polygon is buffered and read.
type ROIMode string

const (
	// InROI flags frames inside the arena grown by ThreshMM.
	InROI ROIMode = "in_roi"
	// CenterCrossing flags frames inside the arena shrunk by ThreshMM.
	CenterCrossing ROIMode = "center_crossing"
	// Thigmotaxis flags frames outside the arena shrunk by ThreshMM,
	// i.e. near the walls.
	Thigmotaxis ROIMode = "thigmotaxis"
)

// ROIConfig is the resolved configuration of a region-of-interest
// analysis. The corners name bodyparts of the single individual.
type ROIConfig struct {
	ThreshMM    float64
	TopLeft     string
	TopRight    string
	BottomLeft  string
	BottomRight string
	Bodyparts   []string
}

type point struct{ x, y float64 }

// cornerMean averages a corner's position over all frames; the arena is
// assumed not to move.
func cornerMean(t *keypoints.Table, op, corner string) (point, error) {
	if !t.Schema.HasBodypart(keypoints.SingleIndividual, corner) {
		return point{}, outcome.Configf(op, corner, "corner is not a bodypart of the %q individual", keypoints.SingleIndividual)
	}
	x, y, err := t.XY(keypoints.SingleIndividual, corner)
	if err != nil {
		return point{}, err
	}
	p := point{series.NaNMean(x), series.NaNMean(y)}
	if math.IsNaN(p.x) || math.IsNaN(p.y) {
		return point{}, fmt.Errorf("%s: corner %q was never tracked", op, corner)
	}
	return p, nil
}

// arena returns the four corners in order top-left, top-right,
// bottom-right, bottom-left, each moved diagonally by grow pixels away
// from the centre (negative grow moves them inwards). Image y grows
// downwards.
func arena(t *keypoints.Table, op string, cfg ROIConfig, grow float64) ([]point, error) {
	names := []string{cfg.TopLeft, cfg.TopRight, cfg.BottomRight, cfg.BottomLeft}
	signs := []point{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	poly := make([]point, len(names))
	for i, name := range names {
		p, err := cornerMean(t, op, name)
		if err != nil {
			return nil, err
		}
		poly[i] = point{p.x + signs[i].x*grow, p.y + signs[i].y*grow}
	}
	return poly, nil
}

// inside is an even-odd ray casting test. NaN coordinates are outside.
func inside(poly []point, p point) bool {
	in := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.y > p.y) != (b.y > p.y) && p.x < (b.x-a.x)*(p.y-a.y)/(b.y-a.y)+a.x {
			in = !in
		}
	}
	return in
}

// InRegion flags, per animal and frame, whether the centroid of the
// configured bodyparts lies in the arena as buffered by mode.
func InRegion(t *keypoints.Table, cfg ROIConfig, cal units.Calibration, mode ROIMode) (*results.Table, error) {
	op := string(mode)
	var grow float64
	switch mode {
	case InROI:
		grow = cal.MMToPx(cfg.ThreshMM)
	case CenterCrossing, Thigmotaxis:
		grow = -cal.MMToPx(cfg.ThreshMM)
	default:
		return nil, outcome.Configf("roi", op, "is not a region analysis")
	}
	indivs, err := checkInputs(op, t, cal, cfg.Bodyparts)
	if err != nil {
		return nil, err
	}
	poly, err := arena(t, op, cfg, grow)
	if err != nil {
		return nil, err
	}

	out := results.New(t.Frames)
	for _, ind := range indivs {
		cx, cy, err := t.Centroid(ind, cfg.Bodyparts)
		if err != nil {
			return nil, err
		}
		flag := make(series.Bool, t.Len())
		for i := range flag {
			flag[i] = inside(poly, point{cx[i], cy[i]})
		}
		if mode == Thigmotaxis {
			flag = flag.Not()
		}
		if err := out.AddFlag(results.Measure{Individual: ind, Name: op}, flag); err != nil {
			return nil, err
		}
	}
	return out, nil
}
