package config

import (
	"github.com/banshee-data/behaviour.report/internal/analysis"
	"github.com/banshee-data/behaviour.report/internal/classify"
	"github.com/banshee-data/behaviour.report/internal/identity"
	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/preprocess"
	"github.com/banshee-data/behaviour.report/internal/units"
	"github.com/banshee-data/behaviour.report/internal/vote"
)

// Default arena corner labels, as commonly named in tracking projects.
const (
	DefaultTopLeft     = "TopLeft"
	DefaultTopRight    = "TopRight"
	DefaultBottomLeft  = "BottomLeft"
	DefaultBottomRight = "BottomRight"
)

// DefaultBinsSec are the summary bin widths used when none are configured.
var DefaultBinsSec = []float64{30, 60, 120}

func getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func getInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func getString(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

// Calibration returns the recording calibration from the auto section.
// Both values must be set, either in the file or by calibration.
func (c *ExperimentConfig) Calibration() (units.Calibration, error) {
	if c.Auto.FPS == nil {
		return units.Calibration{}, outcome.Configf("config", "auto.fps", "is not set")
	}
	if c.Auto.PxPerMM == nil {
		return units.Calibration{}, outcome.Configf("config", "auto.px_per_mm", "is not set; run calibrate or set it")
	}
	cal := units.Calibration{FPS: *c.Auto.FPS, PxPerMM: *c.Auto.PxPerMM}
	if err := cal.Validate(); err != nil {
		return units.Calibration{}, outcome.Configf("config", "auto", "%v", err)
	}
	return cal, nil
}

// GetFPS returns auto.fps, or 0 when unset.
func (c *ExperimentConfig) GetFPS() float64 { return getFloat(c.Auto.FPS, 0) }

// ToStartFrameConfig resolves calculate_params.start_frame.
func (c *ExperimentConfig) ToStartFrameConfig() preprocess.StartFrameConfig {
	p := c.User.CalculateParams.StartFrame
	return preprocess.StartFrameConfig{
		WindowSec: getFloat(p.WindowSec, 1),
		PCutoff:   getFloat(p.PCutoff, 0.9),
	}
}

// GetDurSec returns calculate_params.stop_frame.dur_sec. The second result
// is false when unset, meaning the recording runs to its last frame.
func (c *ExperimentConfig) GetDurSec() (float64, bool) {
	p := c.User.CalculateParams.StopFrame.DurSec
	if p == nil {
		return 0, false
	}
	return *p, true
}

// GetPxPerMMParams returns the calibration reference points and their
// real distance. dist_mm has no default.
func (c *ExperimentConfig) GetPxPerMMParams() (ptA, ptB string, distMM float64) {
	p := c.User.CalculateParams.PxPerMM
	return getString(p.PtA, DefaultTopLeft), getString(p.PtB, DefaultTopRight), getFloat(p.DistMM, 0)
}

// GetInterpolatePCutoff returns preprocess.interpolate.pcutoff.
func (c *ExperimentConfig) GetInterpolatePCutoff() float64 {
	return getFloat(c.User.Preprocess.Interpolate.PCutoff, 0.5)
}

// RefineEnabled reports whether identity refinement is configured. It
// needs both animals and the marking named.
func (c *ExperimentConfig) RefineEnabled() bool {
	p := c.User.Preprocess.RefineIDs
	return p.Marked != nil && p.Unmarked != nil && p.Marking != nil
}

// ToRefineConfig resolves preprocess.refine_ids.
func (c *ExperimentConfig) ToRefineConfig() (identity.RefineConfig, error) {
	p := c.User.Preprocess.RefineIDs
	m, err := vote.ParseMetric(getString(p.Metric, string(vote.MetricRolling)))
	if err != nil {
		return identity.RefineConfig{}, err
	}
	return identity.RefineConfig{
		Marked:    getString(p.Marked, ""),
		Unmarked:  getString(p.Unmarked, ""),
		Marking:   getString(p.Marking, ""),
		WindowSec: getFloat(p.WindowSec, 0.5),
		Bodyparts: p.Bodyparts,
		Metric:    m,
	}, nil
}

func (c *ExperimentConfig) ToSpeedConfig() analysis.SpeedConfig {
	p := c.User.Analyse.Speed
	return analysis.SpeedConfig{
		SmoothingSec: getFloat(p.SmoothingSec, 0.2),
		Bodyparts:    p.Bodyparts,
		JitterFrames: getInt(p.JitterFrames, analysis.DefaultJitterFrames),
	}
}

func (c *ExperimentConfig) ToSocialDistanceConfig() analysis.SocialDistanceConfig {
	p := c.User.Analyse.SocialDistance
	return analysis.SocialDistanceConfig{
		SmoothingSec: getFloat(p.SmoothingSec, 0.2),
		Bodyparts:    p.Bodyparts,
	}
}

func (c *ExperimentConfig) ToFreezingConfig() analysis.FreezingConfig {
	p := c.User.Analyse.Freezing
	return analysis.FreezingConfig{
		WindowSec:    getFloat(p.WindowSec, 2),
		ThreshMM:     getFloat(p.ThreshMM, 5),
		SmoothingSec: getFloat(p.SmoothingSec, 0.2),
		Bodyparts:    p.Bodyparts,
	}
}

// ToROIConfig resolves the analyse section of one region mode.
func (c *ExperimentConfig) ToROIConfig(mode analysis.ROIMode) (analysis.ROIConfig, error) {
	var p ROIParams
	switch mode {
	case analysis.InROI:
		p = c.User.Analyse.InROI
	case analysis.Thigmotaxis:
		p = c.User.Analyse.Thigmotaxis
	case analysis.CenterCrossing:
		p = c.User.Analyse.CenterCrossing
	default:
		return analysis.ROIConfig{}, outcome.Configf("config", string(mode), "unknown region mode")
	}
	return analysis.ROIConfig{
		ThreshMM:    getFloat(p.ThreshMM, 0),
		TopLeft:     getString(p.RoiTopLeft, DefaultTopLeft),
		TopRight:    getString(p.RoiTopRight, DefaultTopRight),
		BottomLeft:  getString(p.RoiBottomLeft, DefaultBottomLeft),
		BottomRight: getString(p.RoiBottomRight, DefaultBottomRight),
		Bodyparts:   p.Bodyparts,
	}, nil
}

// GetBinsSec returns analyse.bins_sec or DefaultBinsSec.
func (c *ExperimentConfig) GetBinsSec() []float64 {
	if len(c.User.Analyse.BinsSec) == 0 {
		return append([]float64(nil), DefaultBinsSec...)
	}
	return append([]float64(nil), c.User.Analyse.BinsSec...)
}

// GetCustomBinsSec returns the analyse.custom_bins_sec edges, or nil when
// no custom bins are configured.
func (c *ExperimentConfig) GetCustomBinsSec() []float64 {
	return append([]float64(nil), c.User.Analyse.CustomBinsSec...)
}

func (c *ExperimentConfig) ToClassifyConfig() classify.Config {
	p := c.User.ClassifyBehaviours
	return classify.Config{
		PCutoff:         getFloat(p.PCutoff, 0.5),
		MinWindowFrames: getInt(p.MinWindowFrames, 2),
		Behaviours:      p.Behaviours,
	}
}
