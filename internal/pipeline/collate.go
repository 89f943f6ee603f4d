package pipeline

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/banshee-data/behaviour.report/internal/config"
	"github.com/banshee-data/behaviour.report/internal/monitoring"
	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/results"
	"github.com/banshee-data/behaviour.report/internal/security"
)

// StageCollated holds the tables combining every experiment of a batch:
// one per summary stage, named after the stage, and CollatedConfigsAuto.
const (
	StageCollated       = "collated"
	CollatedConfigsAuto = "configs_auto"
)

// CollatedSummaryRow is a summary row tagged with its experiment.
type CollatedSummaryRow struct {
	Experiment string `csv:"experiment"`
	results.SummaryRow
}

// AutoRow holds the calibrated auto values of one experiment's config.
// Values that were never calibrated are left empty.
type AutoRow struct {
	Experiment  string   `csv:"experiment"`
	FPS         *float64 `csv:"fps,omitempty"`
	PxPerMM     *float64 `csv:"px_per_mm,omitempty"`
	StartFrame  *int     `csv:"start_frame,omitempty"`
	StopFrame   *int     `csv:"stop_frame,omitempty"`
	TotalFrames *int     `csv:"total_frames,omitempty"`
}

// CollateReport lists the files written by Collate.
type CollateReport struct {
	Outcome outcome.Outcome
	Outputs []string
}

// Collate combines the outputs that Process wrote under outDir for exps.
// The whole-recording and binned summaries of each summary stage are
// concatenated with an experiment column, and the auto section of every
// experiment's config is gathered into one table. Experiments without an
// analysis summary are skipped with a warning; classify summaries are only
// collated for the experiments that have one.
func Collate(exps []Experiment, outDir string) (*CollateReport, error) {
	if err := checkNames(exps); err != nil {
		return nil, err
	}
	rep := &CollateReport{}

	for _, stage := range []string{StageSummary, StageClassifySummary} {
		rows, err := collateSummaries(exps, outDir, stage, &rep.Outcome)
		if err != nil {
			return rep, err
		}
		if rows == nil {
			continue
		}
		path, err := writeCollated(outDir, stage, func(w io.Writer) error { return gocsv.Marshal(rows, w) })
		if err != nil {
			return rep, err
		}
		rep.Outputs = append(rep.Outputs, path)
	}

	autos := make([]*AutoRow, 0, len(exps))
	for _, exp := range exps {
		cfg, err := config.LoadExperimentConfig(exp.ConfigPath)
		if err != nil {
			rep.Outcome.Warnf("%s: config not collated: %v", exp.Name, err)
			continue
		}
		a := cfg.Auto
		autos = append(autos, &AutoRow{
			Experiment:  exp.Name,
			FPS:         a.FPS,
			PxPerMM:     a.PxPerMM,
			StartFrame:  a.StartFrame,
			StopFrame:   a.StopFrame,
			TotalFrames: a.TotalFrames,
		})
	}
	path, err := writeCollated(outDir, CollatedConfigsAuto, func(w io.Writer) error { return gocsv.Marshal(autos, w) })
	if err != nil {
		return rep, err
	}
	rep.Outputs = append(rep.Outputs, path)
	rep.Outcome.Notef("collated %d experiments", len(exps))
	return rep, nil
}

// collateSummaries reads the summary of stage for each experiment. It
// returns nil when no experiment has one.
func collateSummaries(exps []Experiment, outDir, stage string, o *outcome.Outcome) ([]*CollatedSummaryRow, error) {
	var out []*CollatedSummaryRow
	for _, exp := range exps {
		path := filepath.Join(outDir, stage, security.SanitizeFilename(exp.Name)+".csv")
		rows, err := readSummaryFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if stage == StageSummary {
				o.Warnf("%s: no %s output to collate", exp.Name, stage)
			}
			continue
		case err != nil:
			return nil, err
		}
		if out == nil {
			out = []*CollatedSummaryRow{}
		}
		for _, r := range rows {
			out = append(out, &CollatedSummaryRow{Experiment: exp.Name, SummaryRow: *r})
		}
		monitoring.Logf("collated %d %s rows of %s", len(rows), stage, exp.Name)
	}
	return out, nil
}

func readSummaryFile(path string) ([]*results.SummaryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return results.ReadSummariesCSV(f)
}

func writeCollated(outDir, name string, fn func(io.Writer) error) (string, error) {
	path, err := security.OutputPath(outDir, StageCollated, name, ".csv")
	if err != nil {
		return "", err
	}
	return path, results.WriteFile(path, fn)
}
