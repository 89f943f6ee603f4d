// Package analysis derives per-frame behavioural measures from a cleaned
// keypoint table: speed, freezing, distance between two animals and
// region-of-interest occupancy. Every function validates its configuration
// against the table before computing anything and returns a fresh
// results.Table aligned to the keypoint frames.
package analysis

import (
	"github.com/banshee-data/behaviour.report/internal/keypoints"
	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/units"
)

// Measure names written by the analyses.
const (
	SpeedMMperSec         = "SpeedMMperSec"
	SpeedMMperSecSmoothed = "SpeedMMperSecSmoothed"
	FreezingFlag          = "freezing"
	DistMM                = "DistMM"
	DistMMSmoothed        = "DistMMSmoothed"
)

// DefaultJitterFrames is the centred smoothing applied to raw positions
// before speed is computed.
const DefaultJitterFrames = 3

// smoothingFrames converts a smoothing period to whole frames, truncating,
// with a minimum of one frame.
func smoothingFrames(cal units.Calibration, sec float64) int {
	n := cal.FramesTruncated(sec)
	if n < 1 {
		return 1
	}
	return n
}

// checkInputs validates the calibration and that every animal in t has the
// requested bodyparts.
func checkInputs(op string, t *keypoints.Table, cal units.Calibration, bodyparts []string) ([]string, error) {
	if err := cal.Validate(); err != nil {
		return nil, outcome.Configf(op, "", "%v", err)
	}
	indivs := t.Schema.Individuals()
	if len(indivs) == 0 {
		return nil, outcome.Configf(op, "", "keypoints contain no individuals")
	}
	for _, ind := range indivs {
		if err := t.Schema.CheckBodyparts(op, ind, bodyparts); err != nil {
			return nil, err
		}
	}
	return indivs, nil
}
