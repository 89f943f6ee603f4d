package analysis

import (
	"github.com/banshee-data/behaviour.report/internal/keypoints"
	"github.com/banshee-data/behaviour.report/internal/results"
	"github.com/banshee-data/behaviour.report/internal/series"
	"github.com/banshee-data/behaviour.report/internal/units"
)

// SpeedConfig is the resolved configuration of the speed analysis.
type SpeedConfig struct {
	SmoothingSec float64
	Bodyparts    []string
	// JitterFrames is the centred window applied to raw positions before
	// differencing. 1 or less disables it.
	JitterFrames int
}

// Speed computes each animal's centroid speed in mm/s. Raw positions are
// smoothed with a centred NaN-mean over JitterFrames, averaged over the
// bodyparts, differenced frame to frame and scaled by fps / px_per_mm. The
// smoothed measure is a trailing NaN-mean over SmoothingSec. Leading
// frames with no previous frame are back-filled.
func Speed(t *keypoints.Table, cfg SpeedConfig, cal units.Calibration) (*results.Table, error) {
	indivs, err := checkInputs("speed", t, cal, cfg.Bodyparts)
	if err != nil {
		return nil, err
	}
	window := smoothingFrames(cal, cfg.SmoothingSec)

	out := results.New(t.Frames)
	for _, ind := range indivs {
		xs := make([]series.Float, 0, len(cfg.Bodyparts))
		ys := make([]series.Float, 0, len(cfg.Bodyparts))
		for _, bp := range cfg.Bodyparts {
			x, y, err := t.XY(ind, bp)
			if err != nil {
				return nil, err
			}
			if cfg.JitterFrames > 1 {
				x = series.RollingNaNMean(x, cfg.JitterFrames, true)
				y = series.RollingNaNMean(y, cfg.JitterFrames, true)
			}
			xs = append(xs, x)
			ys = append(ys, y)
		}
		cx, cy := series.RowNaNMean(xs...), series.RowNaNMean(ys...)

		delta := series.Hypot(series.Diff(cx), series.Diff(cy))
		speed := delta.Scale(cal.FPS / cal.PxPerMM)
		smoothed := series.RollingNaNMean(speed, window, false)

		if err := out.Add(results.Measure{Individual: ind, Name: SpeedMMperSec}, series.BackFill(speed)); err != nil {
			return nil, err
		}
		if err := out.Add(results.Measure{Individual: ind, Name: SpeedMMperSecSmoothed}, series.BackFill(smoothed)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
