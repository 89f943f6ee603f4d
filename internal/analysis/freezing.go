package analysis

import (
	"github.com/banshee-data/behaviour.report/internal/bouts"
	"github.com/banshee-data/behaviour.report/internal/keypoints"
	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/results"
	"github.com/banshee-data/behaviour.report/internal/series"
	"github.com/banshee-data/behaviour.report/internal/units"
)

// FreezingConfig is the resolved configuration of the freezing analysis.
type FreezingConfig struct {
	WindowSec    float64 // minimum freezing bout length
	ThreshMM     float64 // movement radius below which a bodypart is still
	SmoothingSec float64
	Bodyparts    []string
}

// Freezing flags the frames in which every listed bodypart of an animal
// moves less than ThreshMM per frame, after a trailing NaN-mean over
// SmoothingSec. Frames with an unknown displacement are not frozen.
// Freezing bouts shorter than WindowSec are discarded.
func Freezing(t *keypoints.Table, cfg FreezingConfig, cal units.Calibration) (*results.Table, error) {
	indivs, err := checkInputs("freezing", t, cal, cfg.Bodyparts)
	if err != nil {
		return nil, err
	}
	if cfg.ThreshMM < 0 {
		return nil, outcome.Configf("freezing", "thresh_mm", "must not be negative, got %g", cfg.ThreshMM)
	}
	threshPx := cal.MMToPx(cfg.ThreshMM)
	window := smoothingFrames(cal, cfg.SmoothingSec)
	minFrames := cal.FramesRounded(cfg.WindowSec)

	out := results.New(t.Frames)
	for _, ind := range indivs {
		still := make([]series.Bool, 0, len(cfg.Bodyparts))
		for _, bp := range cfg.Bodyparts {
			x, y, err := t.XY(ind, bp)
			if err != nil {
				return nil, err
			}
			delta := series.Hypot(series.Diff(x), series.Diff(y))
			still = append(still, series.RollingNaNMean(delta, window, false).Less(threshPx))
		}
		frozen := bouts.DropShortBouts(series.All(still...), minFrames)
		if err := out.AddFlag(results.Measure{Individual: ind, Name: FreezingFlag}, frozen); err != nil {
			return nil, err
		}
	}
	return out, nil
}
