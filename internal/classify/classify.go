// Package classify turns per-frame classifier probabilities into behaviour
// predictions. The classifier itself runs elsewhere; this package reads
// its probability output.
package classify

import (
	"github.com/banshee-data/behaviour.report/internal/bouts"
	"github.com/banshee-data/behaviour.report/internal/monitoring"
	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/results"
	"github.com/banshee-data/behaviour.report/internal/series"
)

// Measure names of classifier input and output columns. A behaviour is
// stored as the individual of its measures, e.g. {fight, prob}.
const (
	Prob = "prob"
	Pred = "pred"
)

// Config is the resolved classification configuration.
type Config struct {
	PCutoff         float64
	MinWindowFrames int
	Behaviours      []string
}

// Predict thresholds probabilities at pcutoff (strictly greater) and fills
// non-behaviour gaps shorter than minWindowFrames.
func Predict(probs series.Float, pcutoff float64, minWindowFrames int) series.Bool {
	return bouts.MergeShortGaps(probs.Greater(pcutoff), minWindowFrames)
}

// Classify reads the {behaviour, prob} measure of every configured
// behaviour from probs and returns a table holding the probabilities and
// the {behaviour, pred} flags with their bouts.
func Classify(probs *results.Table, cfg Config) (*results.Table, outcome.Outcome, error) {
	var o outcome.Outcome
	if cfg.PCutoff < 0 || cfg.PCutoff > 1 {
		return nil, o, outcome.Configf("classify_behaviours", "pcutoff", "must be between 0 and 1, got %g", cfg.PCutoff)
	}
	if cfg.MinWindowFrames < 0 {
		return nil, o, outcome.Configf("classify_behaviours", "min_window_frames", "must not be negative, got %d", cfg.MinWindowFrames)
	}
	if len(cfg.Behaviours) == 0 {
		return nil, o, outcome.Configf("classify_behaviours", "behaviours", "no behaviours configured")
	}
	cols := make([]series.Float, len(cfg.Behaviours))
	for i, b := range cfg.Behaviours {
		p, ok := probs.Get(results.Measure{Individual: b, Name: Prob})
		if !ok {
			return nil, o, outcome.Configf("classify_behaviours", b, "no %s column for behaviour", Prob)
		}
		cols[i] = p
	}

	out := results.New(probs.Frames)
	for i, b := range cfg.Behaviours {
		pred := Predict(cols[i], cfg.PCutoff, cfg.MinWindowFrames)
		if err := out.Add(results.Measure{Individual: b, Name: Prob}, cols[i]); err != nil {
			return nil, o, err
		}
		if err := out.AddFlag(results.Measure{Individual: b, Name: Pred}, pred); err != nil {
			return nil, o, err
		}
		monitoring.Logf("classify: %s predicted in %d of %d frames", b, pred.Count(), len(pred))
		o.Notef("completed %s classification", b)
	}
	return out, o, nil
}
