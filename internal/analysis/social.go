package analysis

import (
	"github.com/banshee-data/behaviour.report/internal/keypoints"
	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/results"
	"github.com/banshee-data/behaviour.report/internal/series"
	"github.com/banshee-data/behaviour.report/internal/units"
)

// SocialDistanceConfig is the resolved configuration of the social
// distance analysis.
type SocialDistanceConfig struct {
	SmoothingSec float64
	Bodyparts    []string
}

// SocialDistance computes the distance in mm between the centroids of the
// two animals in t, plus a trailing NaN-mean over SmoothingSec. The
// measures are written under the individual "<a>_<b>".
func SocialDistance(t *keypoints.Table, cfg SocialDistanceConfig, cal units.Calibration) (*results.Table, error) {
	indivs, err := checkInputs("social_distance", t, cal, cfg.Bodyparts)
	if err != nil {
		return nil, err
	}
	if len(indivs) != 2 {
		return nil, outcome.Configf("social_distance", "", "needs exactly two individuals, keypoints have %d", len(indivs))
	}
	a, b := indivs[0], indivs[1]

	ax, ay, err := t.Centroid(a, cfg.Bodyparts)
	if err != nil {
		return nil, err
	}
	bx, by, err := t.Centroid(b, cfg.Bodyparts)
	if err != nil {
		return nil, err
	}
	dx := make(series.Float, t.Len())
	dy := make(series.Float, t.Len())
	for i := range dx {
		dx[i] = ax[i] - bx[i]
		dy[i] = ay[i] - by[i]
	}
	dist := series.Hypot(dx, dy).Scale(1 / cal.PxPerMM)

	pair := a + "_" + b
	out := results.New(t.Frames)
	if err := out.Add(results.Measure{Individual: pair, Name: DistMM}, dist); err != nil {
		return nil, err
	}
	smoothed := series.RollingNaNMean(dist, smoothingFrames(cal, cfg.SmoothingSec), false)
	if err := out.Add(results.Measure{Individual: pair, Name: DistMMSmoothed}, smoothed); err != nil {
		return nil, err
	}
	return out, nil
}
