package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/vote"
)

const (
	// EnvPrefix selects the environment variables that override file
	// values. Nesting levels are separated by a double underscore, so
	// BEHAV_AUTO__FPS sets auto.fps.
	EnvPrefix = "BEHAV_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// ExperimentConfig is the per-experiment configuration document. The auto
// section holds values derived from the recording (some written back by
// the calibration stage); the user section holds analysis parameters.
//
// Every leaf is a pointer so that partial documents are safe: the Get*
// accessors supply the defaults for anything not set.
type ExperimentConfig struct {
	Auto AutoConfig `json:"auto"`
	User UserConfig `json:"user"`
}

type AutoConfig struct {
	FPS         *float64 `json:"fps,omitempty"`
	PxPerMM     *float64 `json:"px_per_mm,omitempty"`
	StartFrame  *int     `json:"start_frame,omitempty"`
	StopFrame   *int     `json:"stop_frame,omitempty"`
	TotalFrames *int     `json:"total_frames,omitempty"`
}

type UserConfig struct {
	CalculateParams    CalculateParamsConfig `json:"calculate_params"`
	Preprocess         PreprocessConfig      `json:"preprocess"`
	Analyse            AnalyseConfig         `json:"analyse"`
	ClassifyBehaviours ClassifyConfig        `json:"classify_behaviours"`
}

type CalculateParamsConfig struct {
	StartFrame StartFrameParams `json:"start_frame"`
	StopFrame  StopFrameParams  `json:"stop_frame"`
	PxPerMM    PxPerMMParams    `json:"px_per_mm"`
}

type StartFrameParams struct {
	WindowSec *float64 `json:"window_sec,omitempty"`
	PCutoff   *float64 `json:"pcutoff,omitempty"`
}

type StopFrameParams struct {
	DurSec *float64 `json:"dur_sec,omitempty"`
}

type PxPerMMParams struct {
	PtA    *string  `json:"pt_a,omitempty"`
	PtB    *string  `json:"pt_b,omitempty"`
	DistMM *float64 `json:"dist_mm,omitempty"`
}

type PreprocessConfig struct {
	Interpolate InterpolateParams `json:"interpolate"`
	RefineIDs   RefineIDsParams   `json:"refine_ids"`
}

type InterpolateParams struct {
	PCutoff *float64 `json:"pcutoff,omitempty"`
}

type RefineIDsParams struct {
	Marked    *string  `json:"marked,omitempty"`
	Unmarked  *string  `json:"unmarked,omitempty"`
	Marking   *string  `json:"marking,omitempty"`
	WindowSec *float64 `json:"window_sec,omitempty"`
	Bodyparts []string `json:"bodyparts,omitempty"`
	Metric    *string  `json:"metric,omitempty"`
}

type AnalyseConfig struct {
	Speed          SpeedParams    `json:"speed"`
	SocialDistance SmoothedParams `json:"social_distance"`
	Freezing       FreezingParams `json:"freezing"`
	InROI          ROIParams      `json:"in_roi"`
	Thigmotaxis    ROIParams      `json:"thigmotaxis"`
	CenterCrossing ROIParams      `json:"center_crossing"`
	BinsSec        []float64      `json:"bins_sec,omitempty"`
	CustomBinsSec  []float64      `json:"custom_bins_sec,omitempty"`
}

type SmoothedParams struct {
	SmoothingSec *float64 `json:"smoothing_sec,omitempty"`
	Bodyparts    []string `json:"bodyparts,omitempty"`
}

type SpeedParams struct {
	SmoothingSec *float64 `json:"smoothing_sec,omitempty"`
	JitterFrames *int     `json:"jitter_frames,omitempty"`
	Bodyparts    []string `json:"bodyparts,omitempty"`
}

type FreezingParams struct {
	WindowSec    *float64 `json:"window_sec,omitempty"`
	ThreshMM     *float64 `json:"thresh_mm,omitempty"`
	SmoothingSec *float64 `json:"smoothing_sec,omitempty"`
	Bodyparts    []string `json:"bodyparts,omitempty"`
}

type ROIParams struct {
	ThreshMM       *float64 `json:"thresh_mm,omitempty"`
	RoiTopLeft     *string  `json:"roi_top_left,omitempty"`
	RoiTopRight    *string  `json:"roi_top_right,omitempty"`
	RoiBottomLeft  *string  `json:"roi_bottom_left,omitempty"`
	RoiBottomRight *string  `json:"roi_bottom_right,omitempty"`
	Bodyparts      []string `json:"bodyparts,omitempty"`
}

type ClassifyConfig struct {
	PCutoff         *float64 `json:"pcutoff,omitempty"`
	MinWindowFrames *int     `json:"min_window_frames,omitempty"`
	Behaviours      []string `json:"behaviours,omitempty"`
}

// parserFor picks the koanf parser for a config file by extension.
func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return kjson.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}
}

// envKey maps BEHAV_USER__ANALYSE__FREEZING__THRESH_MM to
// user.analyse.freezing.thresh_mm.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// readConfigFile reads a config file of at most maxConfigFileSize bytes.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// LoadExperimentConfig reads an experiment config from a .json, .yaml or
// .yml file and applies BEHAV_ environment overrides on top. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadExperimentConfig(path string) (*ExperimentConfig, error) {
	cleanPath := filepath.Clean(path)
	parser, err := parserFor(cleanPath)
	if err != nil {
		return nil, err
	}

	data, err := readConfigFile(cleanPath)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var cfg ExperimentConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// SaveExperimentConfig writes the auto section of cfg to path in the
// format given by its extension. The rest of an existing file is kept as
// it is on disk, so BEHAV_ environment overrides applied at load time are
// not persisted. A missing file is created from the whole of cfg.
func SaveExperimentConfig(path string, cfg *ExperimentConfig) error {
	cleanPath := filepath.Clean(path)
	parser, err := parserFor(cleanPath)
	if err != nil {
		return err
	}

	k := koanf.New(".")
	data, err := readConfigFile(cleanPath)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := loadJSON(k, cfg); err != nil {
			return err
		}
	default:
		return err
	}

	// Round-trip through the JSON tags so both formats share one key set.
	auto := koanf.New(".")
	if err := loadJSON(auto, cfg.Auto); err != nil {
		return err
	}
	k.Delete("auto")
	if err := k.MergeAt(auto, "auto"); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	out, err := k.Marshal(parser)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(cleanPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func loadJSON(k *koanf.Koanf, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := k.Load(rawbytes.Provider(raw), kjson.Parser()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate checks the values that are set. Unset values are resolved to
// defaults by the Get* accessors and are always valid.
func (c *ExperimentConfig) Validate() error {
	positive := func(key string, v *float64) error {
		if v != nil && *v <= 0 {
			return outcome.Configf("config", key, "must be positive, got %g", *v)
		}
		return nil
	}
	nonNegative := func(key string, v *float64) error {
		if v != nil && *v < 0 {
			return outcome.Configf("config", key, "must not be negative, got %g", *v)
		}
		return nil
	}
	probability := func(key string, v *float64) error {
		if v != nil && (*v < 0 || *v > 1) {
			return outcome.Configf("config", key, "must be between 0 and 1, got %g", *v)
		}
		return nil
	}

	u := &c.User
	checks := []error{
		positive("auto.fps", c.Auto.FPS),
		positive("auto.px_per_mm", c.Auto.PxPerMM),
		positive("calculate_params.start_frame.window_sec", u.CalculateParams.StartFrame.WindowSec),
		probability("calculate_params.start_frame.pcutoff", u.CalculateParams.StartFrame.PCutoff),
		nonNegative("calculate_params.stop_frame.dur_sec", u.CalculateParams.StopFrame.DurSec),
		positive("calculate_params.px_per_mm.dist_mm", u.CalculateParams.PxPerMM.DistMM),
		probability("preprocess.interpolate.pcutoff", u.Preprocess.Interpolate.PCutoff),
		positive("preprocess.refine_ids.window_sec", u.Preprocess.RefineIDs.WindowSec),
		nonNegative("analyse.speed.smoothing_sec", u.Analyse.Speed.SmoothingSec),
		nonNegative("analyse.social_distance.smoothing_sec", u.Analyse.SocialDistance.SmoothingSec),
		nonNegative("analyse.freezing.window_sec", u.Analyse.Freezing.WindowSec),
		nonNegative("analyse.freezing.thresh_mm", u.Analyse.Freezing.ThreshMM),
		nonNegative("analyse.freezing.smoothing_sec", u.Analyse.Freezing.SmoothingSec),
		nonNegative("analyse.in_roi.thresh_mm", u.Analyse.InROI.ThreshMM),
		nonNegative("analyse.thigmotaxis.thresh_mm", u.Analyse.Thigmotaxis.ThreshMM),
		nonNegative("analyse.center_crossing.thresh_mm", u.Analyse.CenterCrossing.ThreshMM),
		probability("classify_behaviours.pcutoff", u.ClassifyBehaviours.PCutoff),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	if m := u.Preprocess.RefineIDs.Metric; m != nil {
		if _, err := vote.ParseMetric(*m); err != nil {
			return err
		}
	}
	if n := u.Analyse.Speed.JitterFrames; n != nil && *n < 0 {
		return outcome.Configf("config", "analyse.speed.jitter_frames", "must not be negative, got %d", *n)
	}
	if n := u.ClassifyBehaviours.MinWindowFrames; n != nil && *n < 0 {
		return outcome.Configf("config", "classify_behaviours.min_window_frames", "must not be negative, got %d", *n)
	}
	for _, b := range u.Analyse.BinsSec {
		if b <= 0 {
			return outcome.Configf("config", "analyse.bins_sec", "bin sizes must be positive, got %g", b)
		}
	}
	if edges := u.Analyse.CustomBinsSec; len(edges) > 0 {
		if len(edges) < 2 {
			return outcome.Configf("config", "analyse.custom_bins_sec", "need at least two bin edges, got %d", len(edges))
		}
		for i, e := range edges {
			if e < 0 || (i > 0 && e <= edges[i-1]) {
				return outcome.Configf("config", "analyse.custom_bins_sec", "edges must be non-negative and ascending, got %v", edges)
			}
		}
	}
	return nil
}
