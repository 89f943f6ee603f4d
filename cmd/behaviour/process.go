package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/behaviour.report/internal/db"
	"github.com/banshee-data/behaviour.report/internal/pipeline"
)

var (
	experimentName string
	outDir         string
	dbPath         string
	manifestPath   string
	jobs           int
	collate        bool
)

func init() {
	processCmd.Flags().StringVar(&experimentName, "name", "", "experiment name used for output files (default: keypoints file name)")
	processCmd.Flags().StringVar(&keypointsPath, "keypoints", "", "raw keypoints CSV")
	processCmd.Flags().StringVar(&configPath, "config", "", "experiment config (YAML or JSON)")
	processCmd.Flags().StringVar(&probsPath, "probs", "", "optional classifier probabilities CSV")
	processCmd.Flags().StringVar(&outDir, "out", "results", "output directory")
	processCmd.Flags().StringVar(&dbPath, "db", "", "optional SQLite database recording the run")
	processCmd.Flags().BoolVar(&saveConfig, "save", false, "write calibrated auto values back to the config")
	_ = processCmd.MarkFlagRequired("keypoints")
	_ = processCmd.MarkFlagRequired("config")

	batchCmd.Flags().StringVar(&manifestPath, "manifest", "", "CSV with name,keypoints,config,probs columns")
	batchCmd.Flags().StringVar(&outDir, "out", "results", "output directory")
	batchCmd.Flags().StringVar(&dbPath, "db", "", "optional SQLite database recording every run")
	batchCmd.Flags().IntVar(&jobs, "jobs", runtime.NumCPU(), "experiments processed concurrently")
	batchCmd.Flags().BoolVar(&saveConfig, "save", false, "write calibrated auto values back to each config")
	batchCmd.Flags().BoolVar(&collate, "collate", false, "collate summaries and auto config values once all experiments are done")
	_ = batchCmd.MarkFlagRequired("manifest")

	collateCmd.Flags().StringVar(&manifestPath, "manifest", "", "CSV with name,keypoints,config,probs columns")
	collateCmd.Flags().StringVar(&outDir, "out", "results", "output directory the experiments were processed into")
	_ = collateCmd.MarkFlagRequired("manifest")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(collateCmd)
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the full pipeline for one experiment",
	Long: `Process calibrates, preprocesses, analyses and optionally classifies one
experiment, writing each stage under its own directory in --out
(preprocess, analyse, analyse_bouts, analyse_summary and the classify
equivalents). With --db the run, its bouts and its summaries are recorded.

Examples:
  behaviour process --keypoints raw/exp1.csv --config configs/exp1.yaml --out results

  # Record the run
  behaviour process --keypoints raw/exp1.csv --config configs/exp1.yaml --db behaviour.db`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process every experiment listed in a manifest",
	Long: `Batch processes the experiments of a manifest CSV concurrently. A failing
experiment does not stop the others; a status line per experiment is
printed as CSV when all are done. Relative paths in the manifest are
resolved against the manifest's directory.

Examples:
  behaviour batch --manifest experiments.csv --out results --jobs 4 --db behaviour.db

  # Also write the collated tables
  behaviour batch --manifest experiments.csv --out results --collate`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

var collateCmd = &cobra.Command{
	Use:   "collate",
	Short: "Combine the outputs of every experiment in a manifest",
	Long: `Collate gathers the outputs of processed experiments into --out/collated:

  analyse_summary.csv   every experiment's summary and binned summary rows
  classify_summary.csv  the same for classified experiments
  configs_auto.csv      the calibrated auto config values of each experiment

Each table starts with an experiment column. Experiments that have not
been processed yet are reported and skipped.

Examples:
  behaviour collate --manifest experiments.csv --out results`,
	Args: cobra.NoArgs,
	RunE: runCollate,
}

func openStore() (*db.DB, error) {
	if dbPath == "" {
		return nil, nil
	}
	return db.Open(dbPath)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	name := experimentName
	if name == "" {
		name = experimentNameFromPath(keypointsPath)
	}
	exp := pipeline.Experiment{Name: name, KeypointsPath: keypointsPath, ConfigPath: configPath, ProbsPath: probsPath}
	rep, err := pipeline.Process(ctx, exp, pipeline.Options{OutDir: outDir, Store: store, SaveConfig: saveConfig})
	printOutcome(cmd.ErrOrStderr(), rep.Outcome)
	if err != nil {
		return err
	}
	for _, p := range rep.Outputs {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	if rep.RunID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", rep.RunID)
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exps, err := pipeline.ReadManifestFile(manifestPath)
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	reports, err := pipeline.RunBatch(ctx, exps, pipeline.Options{
		OutDir:      outDir,
		Store:       store,
		SaveConfig:  saveConfig,
		Concurrency: jobs,
	})
	if werr := pipeline.WriteReports(cmd.OutOrStdout(), reports); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range reports {
		if r.Failed() {
			failed++
		}
	}
	if collate {
		// stdout already carries the report CSV
		if err := collateOutputs(cmd, cmd.ErrOrStderr(), exps); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d experiments failed", failed, len(reports))
	}
	return nil
}

func runCollate(cmd *cobra.Command, args []string) error {
	exps, err := pipeline.ReadManifestFile(manifestPath)
	if err != nil {
		return err
	}
	return collateOutputs(cmd, cmd.OutOrStdout(), exps)
}

func collateOutputs(cmd *cobra.Command, w io.Writer, exps []pipeline.Experiment) error {
	rep, err := pipeline.Collate(exps, outDir)
	if rep != nil {
		printOutcome(cmd.ErrOrStderr(), rep.Outcome)
	}
	if err != nil {
		return err
	}
	for _, p := range rep.Outputs {
		fmt.Fprintln(w, p)
	}
	return nil
}

// experimentNameFromPath is the base name of path without its extension.
func experimentNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
