// Package pipeline runs the full processing of one experiment, from raw
// keypoints to analysis outputs, and batches many experiments
// concurrently.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/behaviour.report/internal/analysis"
	"github.com/banshee-data/behaviour.report/internal/classify"
	"github.com/banshee-data/behaviour.report/internal/config"
	"github.com/banshee-data/behaviour.report/internal/db"
	"github.com/banshee-data/behaviour.report/internal/identity"
	"github.com/banshee-data/behaviour.report/internal/keypoints"
	"github.com/banshee-data/behaviour.report/internal/monitoring"
	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/preprocess"
	"github.com/banshee-data/behaviour.report/internal/results"
	"github.com/banshee-data/behaviour.report/internal/security"
	"github.com/banshee-data/behaviour.report/internal/timeutil"
	"github.com/banshee-data/behaviour.report/internal/units"
)

// Output stage directories under Options.OutDir.
const (
	StagePreprocess      = "preprocess"
	StageAnalyse         = "analyse"
	StageBouts           = "analyse_bouts"
	StageSummary         = "analyse_summary"
	StageClassify        = "classify"
	StageClassifyBouts   = "classify_bouts"
	StageClassifySummary = "classify_summary"
)

// Experiment names the input files of one recording. ProbsPath is the
// optional per-frame classifier output, a results CSV with one
// <behaviour>/prob column per behaviour.
type Experiment struct {
	Name          string `csv:"name"`
	KeypointsPath string `csv:"keypoints"`
	ConfigPath    string `csv:"config"`
	ProbsPath     string `csv:"probs"`
}

// Options control where and how experiments are processed.
type Options struct {
	OutDir string
	// Store, when set, records each run with its bouts and summaries.
	Store *db.DB
	// SaveConfig writes calibrated auto values back to the config file.
	SaveConfig bool
	// Concurrency bounds RunBatch; 0 or less means one experiment at a time.
	Concurrency int
	Clock       timeutil.Clock
}

func (o Options) clock() timeutil.Clock {
	if o.Clock == nil {
		return timeutil.RealClock{}
	}
	return o.Clock
}

// Report is the result of processing one experiment.
type Report struct {
	Experiment string
	RunID      string
	Outcome    outcome.Outcome
	Outputs    []string
	Duration   time.Duration
	Err        error
}

// Failed reports whether processing stopped with an error.
func (r *Report) Failed() bool { return r.Err != nil }

// Process runs calibration, trimming, interpolation, identity refinement,
// the configured analyses and classification for exp, writing every
// stage's output under opts.OutDir. The returned report carries warnings
// even when err is non-nil.
func Process(ctx context.Context, exp Experiment, opts Options) (rep *Report, err error) {
	clock := opts.clock()
	started := clock.Now()
	rep = &Report{Experiment: exp.Name}

	if opts.Store != nil {
		id, serr := opts.Store.StartRun(ctx, exp.Name)
		if serr != nil {
			rep.Err = serr
			return rep, serr
		}
		rep.RunID = id
	}
	defer func() {
		rep.Duration = clock.Since(started)
		rep.Err = err
		if opts.Store == nil {
			return
		}
		status, text := db.StatusSucceeded, rep.Outcome.String()
		if err != nil {
			status = db.StatusFailed
			text = err.Error() + "\n" + text
		}
		// Record the failure even when ctx was cancelled.
		if ferr := opts.Store.FinishRun(context.WithoutCancel(ctx), rep.RunID, status, text); ferr != nil && err == nil {
			err = ferr
			rep.Err = ferr
		}
	}()

	p := &processor{exp: exp, opts: opts, rep: rep}
	return rep, p.run(ctx)
}

// processor carries the state of one Process call between stages.
type processor struct {
	exp  Experiment
	opts Options
	rep  *Report
	cfg  *config.ExperimentConfig
}

func (p *processor) run(ctx context.Context) error {
	cfg, err := config.LoadExperimentConfig(p.exp.ConfigPath)
	if err != nil {
		return err
	}
	p.cfg = cfg

	raw, err := keypoints.ReadCSVFile(p.exp.KeypointsPath)
	if err != nil {
		return err
	}
	changed, o, err := Calibrate(cfg, raw)
	p.rep.Outcome.Merge(o)
	if err != nil {
		return err
	}
	if changed && p.opts.SaveConfig {
		if err := config.SaveExperimentConfig(p.exp.ConfigPath, cfg); err != nil {
			return err
		}
	}
	cal, err := cfg.Calibration()
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	kp, o, err := Preprocess(cfg, raw)
	p.rep.Outcome.Merge(o)
	if err != nil {
		return err
	}
	if err := p.write(StagePreprocess, func(w io.Writer) error { return keypoints.WriteCSV(w, kp) }); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	res, o, err := Analyse(cfg, kp, cal)
	p.rep.Outcome.Merge(o)
	if err != nil {
		return err
	}
	if err := p.writeResults(ctx, res, cal, StageAnalyse, StageBouts, StageSummary); err != nil {
		return err
	}

	if p.exp.ProbsPath == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	probs, err := results.ReadCSVFile(p.exp.ProbsPath)
	if err != nil {
		return err
	}
	pred, o, err := classify.Classify(probs, cfg.ToClassifyConfig())
	p.rep.Outcome.Merge(o)
	if err != nil {
		return err
	}
	return p.writeResults(ctx, pred, cal, StageClassify, StageClassifyBouts, StageClassifySummary)
}

// Calibrate fills the auto values of cfg that are not set yet: total
// frames, pixel scale, start and stop frames. It reports whether anything
// changed.
func Calibrate(cfg *config.ExperimentConfig, raw *keypoints.Table) (bool, outcome.Outcome, error) {
	var o outcome.Outcome
	auto := &cfg.Auto
	fps := cfg.GetFPS()
	if fps <= 0 {
		return false, o, outcome.Configf("calculate_params", "auto.fps", "is not set")
	}
	changed := false

	if auto.TotalFrames == nil {
		n := raw.Len()
		auto.TotalFrames = &n
		changed = true
	}
	if auto.PxPerMM == nil {
		ptA, ptB, distMM := cfg.GetPxPerMMParams()
		px, err := preprocess.PxPerMM(raw, ptA, ptB, distMM)
		if err != nil {
			return false, o, err
		}
		auto.PxPerMM = &px
		changed = true
	}
	if auto.StartFrame == nil {
		start, so, err := preprocess.StartFrame(raw, cfg.ToStartFrameConfig(), fps)
		o.Merge(so)
		if err != nil {
			return false, o, err
		}
		auto.StartFrame = &start
		changed = true
	}
	if auto.StopFrame == nil {
		stop := raw.FirstFrame() + raw.Len() - 1
		if dur, ok := cfg.GetDurSec(); ok {
			var so outcome.Outcome
			stop, so = preprocess.StopFrame(*auto.StartFrame, dur, fps, raw.FirstFrame()+raw.Len())
			o.Merge(so)
		}
		auto.StopFrame = &stop
		changed = true
	}
	monitoring.Logf("calibrated: fps %g, px_per_mm %g, frames %d-%d", fps, *auto.PxPerMM, *auto.StartFrame, *auto.StopFrame)
	return changed, o, nil
}

// Preprocess trims raw to the calibrated frame range, interpolates low
// confidence points and, when configured, refines identities. cfg must
// have been calibrated.
func Preprocess(cfg *config.ExperimentConfig, raw *keypoints.Table) (*keypoints.Table, outcome.Outcome, error) {
	var o outcome.Outcome
	if cfg.Auto.StartFrame == nil || cfg.Auto.StopFrame == nil {
		return nil, o, outcome.Configf("preprocess", "auto", "start and stop frames are not calibrated")
	}
	kp, err := preprocess.Trim(raw, *cfg.Auto.StartFrame, *cfg.Auto.StopFrame)
	if err != nil {
		return nil, o, err
	}
	kp, no, err := preprocess.Interpolate(kp, cfg.GetInterpolatePCutoff())
	o.Merge(no)
	if err != nil {
		return nil, o, err
	}
	if !cfg.RefineEnabled() {
		return kp, o, nil
	}
	rc, err := cfg.ToRefineConfig()
	if err != nil {
		return nil, o, err
	}
	kp, ro, err := identity.Refine(kp, rc, cfg.GetFPS())
	o.Merge(ro)
	if err != nil {
		return nil, o, err
	}
	return kp, o, nil
}

// Analyse runs every analysis that has bodyparts configured and merges
// their measures into one table.
func Analyse(cfg *config.ExperimentConfig, kp *keypoints.Table, cal units.Calibration) (*results.Table, outcome.Outcome, error) {
	var o outcome.Outcome
	type stage struct {
		name      string
		bodyparts []string
		run       func() (*results.Table, error)
	}
	a := &cfg.User.Analyse
	stages := []stage{
		{"speed", a.Speed.Bodyparts, func() (*results.Table, error) {
			return analysis.Speed(kp, cfg.ToSpeedConfig(), cal)
		}},
		{"freezing", a.Freezing.Bodyparts, func() (*results.Table, error) {
			return analysis.Freezing(kp, cfg.ToFreezingConfig(), cal)
		}},
		{"social_distance", a.SocialDistance.Bodyparts, func() (*results.Table, error) {
			return analysis.SocialDistance(kp, cfg.ToSocialDistanceConfig(), cal)
		}},
	}
	for _, mode := range []analysis.ROIMode{analysis.InROI, analysis.Thigmotaxis, analysis.CenterCrossing} {
		rc, err := cfg.ToROIConfig(mode)
		if err != nil {
			return nil, o, err
		}
		stages = append(stages, stage{string(mode), rc.Bodyparts, func() (*results.Table, error) {
			return analysis.InRegion(kp, rc, cal, mode)
		}})
	}

	out := results.New(kp.Frames)
	for _, s := range stages {
		if len(s.bodyparts) == 0 {
			continue
		}
		res, err := s.run()
		if err != nil {
			return nil, o, err
		}
		if err := out.Merge(res); err != nil {
			return nil, o, fmt.Errorf("%s: %w", s.name, err)
		}
		o.Notef("completed %s analysis", s.name)
	}
	if len(out.Measures()) == 0 {
		o.Warnf("no analyses configured")
	}
	return out, o, nil
}

// Summaries returns the whole-recording summary of res followed by its
// binned summaries for every bins_sec size and, when custom_bins_sec is
// set, for the custom bins.
func Summaries(cfg *config.ExperimentConfig, res *results.Table, cal units.Calibration) ([]*results.SummaryRow, error) {
	summary := results.Summarise(res, cal)
	for _, binSec := range cfg.GetBinsSec() {
		rows, err := results.SummariseBinned(res, cal, binSec)
		if err != nil {
			return nil, err
		}
		summary = append(summary, rows...)
	}
	if edges := cfg.GetCustomBinsSec(); len(edges) > 0 {
		rows, err := results.SummariseCustomBins(res, cal, edges)
		if err != nil {
			return nil, err
		}
		summary = append(summary, rows...)
	}
	return summary, nil
}

// writeResults writes the per-frame table, its bouts and its summaries,
// and stores bouts and summaries with the run.
func (p *processor) writeResults(ctx context.Context, res *results.Table, cal units.Calibration, frameStage, boutStage, summaryStage string) error {
	summary, err := Summaries(p.cfg, res, cal)
	if err != nil {
		return err
	}
	bouts := results.BoutRows(res)

	if err := p.write(frameStage, func(w io.Writer) error { return results.WriteCSV(w, res) }); err != nil {
		return err
	}
	if err := p.write(boutStage, func(w io.Writer) error { return results.WriteBoutsCSV(w, res) }); err != nil {
		return err
	}
	if err := p.write(summaryStage, func(w io.Writer) error { return results.WriteSummariesCSV(w, summary) }); err != nil {
		return err
	}

	if p.opts.Store == nil {
		return nil
	}
	if err := p.opts.Store.InsertBouts(ctx, p.rep.RunID, bouts); err != nil {
		return err
	}
	return p.opts.Store.InsertSummary(ctx, p.rep.RunID, summary)
}

func (p *processor) write(stage string, fn func(io.Writer) error) error {
	path, err := security.OutputPath(p.opts.OutDir, stage, p.exp.Name, ".csv")
	if err != nil {
		return err
	}
	if err := results.WriteFile(path, fn); err != nil {
		return err
	}
	p.rep.Outputs = append(p.rep.Outputs, path)
	return nil
}
