// Package identity corrects identity swaps between two tracked animals.
// One animal carries a visual marking that is tracked as a bodypart of the
// "single" individual. For every frame the animal whose centroid lies closer
// to the marking is taken to be the marked one; the noisy per-frame decision
// is smoothed by majority vote and the two animals' columns are swapped
// wherever the tracker had them the wrong way round.
package identity

import (
	"math"

	"github.com/banshee-data/behaviour.report/internal/keypoints"
	"github.com/banshee-data/behaviour.report/internal/monitoring"
	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/series"
	"github.com/banshee-data/behaviour.report/internal/vote"
)

const op = "refine_ids"

// RefineConfig is the resolved configuration of one refinement run.
type RefineConfig struct {
	Marked    string      // individual that carries the marking
	Unmarked  string      // the other individual
	Marking   string      // bodypart of the single individual tracking the marking
	WindowSec float64     // vote window
	Bodyparts []string    // bodyparts averaged into each animal's centroid
	Metric    vote.Metric // which vote view drives the switch
}

// BuildDistances returns, for each candidate, the per-frame Euclidean
// distance between the marking point and the candidate's centroid over
// refBodyparts. Missing values propagate as NaN.
func BuildDistances(t *keypoints.Table, marking string, candidates, refBodyparts []string) (map[string]series.Float, error) {
	if !t.Schema.HasBodypart(keypoints.SingleIndividual, marking) {
		return nil, outcome.Configf(op, marking, "marking is not a bodypart of the %q individual", keypoints.SingleIndividual)
	}
	for _, c := range candidates {
		if err := t.Schema.CheckBodyparts(op, c, refBodyparts); err != nil {
			return nil, err
		}
	}

	mx, my, err := t.XY(keypoints.SingleIndividual, marking)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Float, len(candidates))
	for _, c := range candidates {
		cx, cy, err := t.Centroid(c, refBodyparts)
		if err != nil {
			return nil, err
		}
		d := make(series.Float, t.Len())
		for i := range d {
			d[i] = math.Hypot(cx[i]-mx[i], cy[i]-my[i])
		}
		out[c] = d
	}
	return out, nil
}

// columnPairs matches every column of a with the column of b that has the
// same bodypart and field. The two individuals must have identical layouts.
func columnPairs(s *keypoints.Schema, a, b string) ([][2]int, error) {
	if a == b {
		return nil, outcome.Configf(op, a, "cannot switch an individual with itself")
	}
	for _, ind := range []string{a, b} {
		if !s.HasIndividual(ind) {
			return nil, outcome.Configf(op, ind, "individual not found in keypoints")
		}
	}

	var pairs [][2]int
	countB := 0
	for i, k := range s.Keys() {
		switch k.Individual {
		case a:
			j, ok := s.Index(keypoints.ColumnKey{Individual: b, Bodypart: k.Bodypart, Field: k.Field})
			if !ok {
				return nil, outcome.Configf(op, k.Bodypart, "%s column exists for %q but not for %q", k.Field, a, b)
			}
			pairs = append(pairs, [2]int{i, j})
		case b:
			countB++
		}
	}
	if countB != len(pairs) {
		return nil, outcome.Configf(op, b, "has columns that %q lacks", a)
	}
	return pairs, nil
}

// ApplySwitch returns a copy of t in which, at every frame where switchAt
// is true, all columns of individual a are exchanged with the matching
// columns of individual b. Applying the same switch twice restores t.
func ApplySwitch(t *keypoints.Table, switchAt series.Bool, a, b string) (*keypoints.Table, error) {
	pairs, err := columnPairs(t.Schema, a, b)
	if err != nil {
		return nil, err
	}
	if len(switchAt) != t.Len() {
		return nil, outcome.Configf(op, "", "switch series has %d frames, keypoints have %d", len(switchAt), t.Len())
	}

	out := t.Clone()
	for _, p := range pairs {
		ca, cb := out.Columns[p[0]], out.Columns[p[1]]
		for r, sw := range switchAt {
			if sw {
				ca[r], cb[r] = cb[r], ca[r]
			}
		}
	}
	return out, nil
}

// Decide computes the switch decision views for t: a frame votes to switch
// when the marked animal is further from the marking than the unmarked one.
// Frames where either distance is unknown vote not to switch.
func Decide(t *keypoints.Table, cfg RefineConfig, fps float64) (vote.Decisions, error) {
	if fps <= 0 {
		return vote.Decisions{}, outcome.Configf(op, "fps", "must be positive, got %g", fps)
	}
	if cfg.WindowSec <= 0 {
		return vote.Decisions{}, outcome.Configf(op, "window_sec", "must be positive, got %g", cfg.WindowSec)
	}
	dists, err := BuildDistances(t, cfg.Marking, []string{cfg.Marked, cfg.Unmarked}, cfg.Bodyparts)
	if err != nil {
		return vote.Decisions{}, err
	}
	decision := series.GreaterThan(dists[cfg.Marked], dists[cfg.Unmarked])
	return vote.Aggregate(decision, t.Frames, WindowFrames(fps, cfg.WindowSec))
}

// WindowFrames converts a vote window in seconds to frames, at least 1.
func WindowFrames(fps, windowSec float64) int {
	n := int(math.Round(fps * windowSec))
	if n < 1 {
		return 1
	}
	return n
}

// Refine validates cfg against t, decides per frame whether the marked
// and unmarked animals are swapped, and returns the corrected table.
func Refine(t *keypoints.Table, cfg RefineConfig, fps float64) (*keypoints.Table, outcome.Outcome, error) {
	var o outcome.Outcome
	if _, err := vote.ParseMetric(string(cfg.Metric)); err != nil {
		return nil, o, err
	}
	if _, err := columnPairs(t.Schema, cfg.Marked, cfg.Unmarked); err != nil {
		return nil, o, err
	}
	decisions, err := Decide(t, cfg, fps)
	if err != nil {
		return nil, o, err
	}
	if !markingDetected(t, cfg.Marking) {
		o.Warnf("no identity marker detected: %q was never tracked, identities left unchanged", cfg.Marking)
		return t.Clone(), o, nil
	}

	switchAt, err := decisions.Select(cfg.Metric)
	if err != nil {
		return nil, o, err
	}
	out, err := ApplySwitch(t, switchAt, cfg.Marked, cfg.Unmarked)
	if err != nil {
		return nil, o, err
	}

	n := switchAt.Count()
	monitoring.Logf("refine_ids: switched %s and %s in %d of %d frames (%s vote)", cfg.Marked, cfg.Unmarked, n, t.Len(), cfg.Metric)
	o.Notef("switched identities in %d of %d frames", n, t.Len())
	return out, o, nil
}

// markingDetected reports whether the marking has a position with non-zero
// likelihood in at least one frame.
func markingDetected(t *keypoints.Table, marking string) bool {
	mx, my, err := t.XY(keypoints.SingleIndividual, marking)
	if err != nil {
		return false
	}
	lk, err := t.Column(keypoints.ColumnKey{Individual: keypoints.SingleIndividual, Bodypart: marking, Field: keypoints.FieldLikelihood})
	for i := range mx {
		if math.IsNaN(mx[i]) || math.IsNaN(my[i]) {
			continue
		}
		if err != nil || lk[i] > 0 {
			return true
		}
	}
	return false
}
