// Package preprocess cleans raw keypoint tables before analysis and
// derives the per-recording parameters that the analyses depend on: the
// start and stop frames of the experiment and the pixel scale.
package preprocess

import (
	"fmt"
	"math"

	"github.com/banshee-data/behaviour.report/internal/keypoints"
	"github.com/banshee-data/behaviour.report/internal/monitoring"
	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/series"
)

// Trim keeps the frames in the inclusive range [start, stop].
func Trim(t *keypoints.Table, start, stop int) (*keypoints.Table, error) {
	if start > stop {
		return nil, outcome.Configf("trim", "", "start frame %d is after stop frame %d", start, stop)
	}
	out, err := t.Slice(start, stop)
	if err != nil {
		return nil, err
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("trim: no frames between %d and %d", start, stop)
	}
	return out, nil
}

// Interpolate replaces low-confidence positions. Missing likelihoods become
// 0; x and y where the likelihood is below pcutoff become missing and are
// filled by linear interpolation, then back-filled at the start and
// forward-filled at the end. A column with no valid value at all is set
// to 0 and reported as a warning.
func Interpolate(t *keypoints.Table, pcutoff float64) (*keypoints.Table, outcome.Outcome, error) {
	var o outcome.Outcome
	if pcutoff < 0 || pcutoff > 1 {
		return nil, o, outcome.Configf("interpolate", "pcutoff", "must be between 0 and 1, got %g", pcutoff)
	}
	out := t.Clone()
	for i, k := range out.Schema.Keys() {
		if k.Field != keypoints.FieldLikelihood {
			continue
		}
		lk := series.FillNaN(out.Columns[i], 0)
		out.Columns[i] = lk
		low := lk.Less(pcutoff)
		for _, f := range []keypoints.Field{keypoints.FieldX, keypoints.FieldY} {
			j, ok := out.Schema.Index(keypoints.ColumnKey{Individual: k.Individual, Bodypart: k.Bodypart, Field: f})
			if !ok {
				continue
			}
			col := out.Columns[j]
			for r, drop := range low {
				if drop {
					col[r] = math.NaN()
				}
			}
		}
	}

	for i, k := range out.Schema.Keys() {
		col := out.Columns[i]
		if series.AllNaN(col) && len(col) > 0 {
			o.Warnf("%s was never detected above the likelihood cutoff, filled with 0", k)
			out.Columns[i] = series.FillNaN(col, 0)
			continue
		}
		out.Columns[i] = series.ForwardFill(series.BackFill(series.InterpolateLinear(col)))
	}
	return out, o, nil
}

// StartFrameConfig is the resolved configuration of start frame detection.
type StartFrameConfig struct {
	WindowSec float64
	PCutoff   float64
}

// StartFrame finds the first frame of the first window of WindowSec in
// which the animals are reliably detected: the rolling median, over a full
// window, of the per-frame median likelihood must exceed PCutoff. The
// start of that window is returned. If no window qualifies the first frame
// is returned with a warning.
func StartFrame(t *keypoints.Table, cfg StartFrameConfig, fps float64) (int, outcome.Outcome, error) {
	var o outcome.Outcome
	if fps <= 0 {
		return 0, o, outcome.Configf("start_frame", "fps", "must be positive, got %g", fps)
	}
	window := int(math.Round(fps * cfg.WindowSec))
	if window < 1 {
		window = 1
	}

	var lks []series.Float
	for i, k := range t.Schema.Keys() {
		if k.Field == keypoints.FieldLikelihood && k.Individual != keypoints.SingleIndividual {
			lks = append(lks, t.Columns[i])
		}
	}
	if len(lks) == 0 {
		return 0, o, outcome.Configf("start_frame", "", "keypoints have no likelihood columns")
	}

	current := make(series.Float, t.Len())
	row := make(series.Float, len(lks))
	for r := range current {
		for c, col := range lks {
			row[c] = col[r]
		}
		current[r] = series.NaNMedian(row)
	}
	rolling := series.RollingNaNMedian(current, window)
	for r, v := range rolling {
		if v > cfg.PCutoff {
			start := t.Frames[r] - (window - 1)
			monitoring.Logf("start_frame: subject detected from frame %d", start)
			return start, o, nil
		}
	}
	o.Warnf("subject was not detected in any frames, using the first frame")
	return t.FirstFrame(), o, nil
}

// StopFrame returns start plus durSec worth of frames, warning when that
// runs past the end of the recording.
func StopFrame(start int, durSec, fps float64, totalFrames int) (int, outcome.Outcome) {
	var o outcome.Outcome
	stop := start + int(durSec*fps)
	if stop > totalFrames {
		o.Warnf("dur_sec of %gs runs past the end of the recording (stop frame %d, %d frames); check the video length or dur_sec", durSec, stop, totalFrames)
	}
	return stop, o
}

// PxPerMM calibrates the pixel scale from two reference points of the
// single individual that are distMM apart in the arena: the mean pixel
// distance between them over all frames divided by distMM.
func PxPerMM(t *keypoints.Table, ptA, ptB string, distMM float64) (float64, error) {
	const op = "px_per_mm"
	if distMM <= 0 {
		return 0, outcome.Configf(op, "dist_mm", "must be positive, got %g", distMM)
	}
	for _, pt := range []string{ptA, ptB} {
		if !t.Schema.HasBodypart(keypoints.SingleIndividual, pt) {
			return 0, outcome.Configf(op, pt, "point is not a bodypart of the %q individual", keypoints.SingleIndividual)
		}
	}
	ax, ay, err := t.XY(keypoints.SingleIndividual, ptA)
	if err != nil {
		return 0, err
	}
	bx, by, err := t.XY(keypoints.SingleIndividual, ptB)
	if err != nil {
		return 0, err
	}
	d := make(series.Float, t.Len())
	for i := range d {
		d[i] = math.Hypot(ax[i]-bx[i], ay[i]-by[i])
	}
	px := series.NaNMean(d)
	if math.IsNaN(px) || px == 0 {
		return 0, fmt.Errorf("%s: points %q and %q give no usable distance", op, ptA, ptB)
	}
	return px / distMM, nil
}
