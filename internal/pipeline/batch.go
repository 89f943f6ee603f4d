package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/behaviour.report/internal/monitoring"
)

// RunBatch processes exps with at most opts.Concurrency running at once.
// A failing experiment is recorded in its report and never stops the
// others; only cancellation of ctx does. Reports are sorted by experiment
// name.
func RunBatch(ctx context.Context, exps []Experiment, opts Options) ([]*Report, error) {
	if err := checkNames(exps); err != nil {
		return nil, err
	}
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	reports := make([]*Report, len(exps))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, exp := range exps {
		if ctx.Err() != nil {
			reports[i] = &Report{Experiment: exp.Name, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			rep, err := Process(ctx, exp, opts)
			if err != nil {
				monitoring.Logf("%s: failed: %v", exp.Name, err)
			} else {
				monitoring.Logf("%s: done in %v", exp.Name, rep.Duration)
			}
			reports[i] = rep
			return nil
		})
	}
	g.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Experiment < reports[j].Experiment })
	return reports, ctx.Err()
}

// checkNames rejects empty and duplicate experiment names, which would
// make outputs collide.
func checkNames(exps []Experiment) error {
	seen := make(map[string]bool, len(exps))
	for _, e := range exps {
		if e.Name == "" {
			return fmt.Errorf("experiment with keypoints %q has no name", e.KeypointsPath)
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate experiment name %q", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// ReadManifest reads a batch manifest CSV with columns name, keypoints,
// config and optionally probs. Relative paths are resolved against
// baseDir.
func ReadManifest(r io.Reader, baseDir string) ([]Experiment, error) {
	var exps []Experiment
	if err := gocsv.Unmarshal(r, &exps); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	for i := range exps {
		exps[i].KeypointsPath = resolve(exps[i].KeypointsPath)
		exps[i].ConfigPath = resolve(exps[i].ConfigPath)
		exps[i].ProbsPath = resolve(exps[i].ProbsPath)
	}
	return exps, checkNames(exps)
}

// ReadManifestFile reads a manifest from disk, resolving relative paths
// against the manifest's directory.
func ReadManifestFile(path string) ([]Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadManifest(f, filepath.Dir(path))
}

// WriteReports writes a one-line-per-experiment batch summary.
func WriteReports(w io.Writer, reports []*Report) error {
	type row struct {
		Experiment string `csv:"experiment"`
		RunID      string `csv:"run_id"`
		Status     string `csv:"status"`
		Warnings   int    `csv:"warnings"`
		Seconds    string `csv:"seconds"`
		Error      string `csv:"error"`
	}
	rows := make([]*row, len(reports))
	for i, r := range reports {
		status, msg := "ok", ""
		if r.Failed() {
			status, msg = "failed", r.Err.Error()
		}
		rows[i] = &row{
			Experiment: r.Experiment,
			RunID:      r.RunID,
			Status:     status,
			Warnings:   len(r.Outcome.Warnings),
			Seconds:    fmt.Sprintf("%.3f", r.Duration.Seconds()),
			Error:      msg,
		}
	}
	return gocsv.Marshal(rows, w)
}
