package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/banshee-data/behaviour.report/internal/classify"
	"github.com/banshee-data/behaviour.report/internal/config"
	"github.com/banshee-data/behaviour.report/internal/keypoints"
	"github.com/banshee-data/behaviour.report/internal/monitoring"
	"github.com/banshee-data/behaviour.report/internal/pipeline"
	"github.com/banshee-data/behaviour.report/internal/results"
)

var (
	keypointsPath string
	configPath    string
	probsPath     string
	outPath       string
	boutsPath     string
	summaryPath   string
	saveConfig    bool
)

func init() {
	calibrateCmd.Flags().StringVar(&keypointsPath, "keypoints", "", "raw keypoints CSV")
	calibrateCmd.Flags().StringVar(&configPath, "config", "", "experiment config (YAML or JSON)")
	calibrateCmd.Flags().BoolVar(&saveConfig, "save", false, "write calibrated auto values back to the config")
	_ = calibrateCmd.MarkFlagRequired("keypoints")
	_ = calibrateCmd.MarkFlagRequired("config")

	preprocessCmd.Flags().StringVar(&keypointsPath, "keypoints", "", "raw keypoints CSV")
	preprocessCmd.Flags().StringVar(&configPath, "config", "", "experiment config (YAML or JSON)")
	preprocessCmd.Flags().StringVar(&outPath, "out", "", "cleaned keypoints CSV to write")
	preprocessCmd.Flags().BoolVar(&saveConfig, "save", false, "write calibrated auto values back to the config")
	_ = preprocessCmd.MarkFlagRequired("keypoints")
	_ = preprocessCmd.MarkFlagRequired("config")
	_ = preprocessCmd.MarkFlagRequired("out")

	analyseCmd.Flags().StringVar(&keypointsPath, "keypoints", "", "preprocessed keypoints CSV")
	analyseCmd.Flags().StringVar(&configPath, "config", "", "calibrated experiment config")
	analyseCmd.Flags().StringVar(&outPath, "out", "", "per-frame measures CSV to write")
	analyseCmd.Flags().StringVar(&boutsPath, "bouts", "", "optional bouts CSV to write")
	analyseCmd.Flags().StringVar(&summaryPath, "summary", "", "optional summary CSV to write")
	_ = analyseCmd.MarkFlagRequired("keypoints")
	_ = analyseCmd.MarkFlagRequired("config")
	_ = analyseCmd.MarkFlagRequired("out")

	classifyCmd.Flags().StringVar(&probsPath, "probs", "", "per-frame classifier probabilities CSV")
	classifyCmd.Flags().StringVar(&configPath, "config", "", "experiment config")
	classifyCmd.Flags().StringVar(&outPath, "out", "", "probabilities and predictions CSV to write")
	classifyCmd.Flags().StringVar(&boutsPath, "bouts", "", "optional bouts CSV to write")
	_ = classifyCmd.MarkFlagRequired("probs")
	_ = classifyCmd.MarkFlagRequired("config")
	_ = classifyCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(preprocessCmd)
	rootCmd.AddCommand(analyseCmd)
	rootCmd.AddCommand(classifyCmd)
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Derive frame range and pixel scale for an experiment",
	Long: `Calibrate computes the auto values of an experiment config that are not
already set: total frames, px_per_mm from two arena reference points, the
start frame where the animals are first reliably detected and the stop
frame.

Examples:
  # Show calibrated values
  behaviour calibrate --keypoints raw/exp1.csv --config configs/exp1.yaml

  # Store them in the config
  behaviour calibrate --keypoints raw/exp1.csv --config configs/exp1.yaml --save`,
	Args: cobra.NoArgs,
	RunE: runCalibrate,
}

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Trim, interpolate and refine identities of raw keypoints",
	Long: `Preprocess calibrates the experiment if needed, trims the keypoints to
the start and stop frames, interpolates points below the likelihood cutoff
and, when refine_ids is configured, corrects swapped identities of a
marked and an unmarked animal.

Examples:
  behaviour preprocess --keypoints raw/exp1.csv --config configs/exp1.yaml --out clean/exp1.csv`,
	Args: cobra.NoArgs,
	RunE: runPreprocess,
}

var analyseCmd = &cobra.Command{
	Use:   "analyse",
	Short: "Run the configured analyses on preprocessed keypoints",
	Long: `Analyse runs every analysis with bodyparts configured (speed, freezing,
social_distance, in_roi, thigmotaxis and center_crossing) and writes the
per-frame measures. Bouts of the flag measures and the overall and binned
summaries can be written alongside.

Examples:
  behaviour analyse --keypoints clean/exp1.csv --config configs/exp1.yaml \
    --out analyse/exp1.csv --bouts bouts/exp1.csv --summary summary/exp1.csv`,
	Args: cobra.NoArgs,
	RunE: runAnalyse,
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Turn per-frame behaviour probabilities into predictions",
	Long: `Classify thresholds each behaviour's per-frame probability at pcutoff
and fills gaps shorter than min_window_frames, writing a pred flag next to
each prob column.

Examples:
  behaviour classify --probs probs/exp1.csv --config configs/exp1.yaml --out classify/exp1.csv`,
	Args: cobra.NoArgs,
	RunE: runClassify,
}

// loadAndCalibrate reads the config and raw keypoints and fills missing
// auto values, saving them when --save is set.
func loadAndCalibrate(w io.Writer) (*config.ExperimentConfig, *keypoints.Table, error) {
	cfg, err := config.LoadExperimentConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	raw, err := keypoints.ReadCSVFile(keypointsPath)
	if err != nil {
		return nil, nil, err
	}
	changed, o, err := pipeline.Calibrate(cfg, raw)
	printOutcome(w, o)
	if err != nil {
		return nil, nil, err
	}
	if changed && saveConfig {
		if err := config.SaveExperimentConfig(configPath, cfg); err != nil {
			return nil, nil, err
		}
		monitoring.Logf("saved calibration to %s", configPath)
	}
	return cfg, raw, nil
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadAndCalibrate(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a := cfg.Auto
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "fps:          %g\n", cfg.GetFPS())
	fmt.Fprintf(out, "px_per_mm:    %g\n", *a.PxPerMM)
	fmt.Fprintf(out, "start_frame:  %d\n", *a.StartFrame)
	fmt.Fprintf(out, "stop_frame:   %d\n", *a.StopFrame)
	fmt.Fprintf(out, "total_frames: %d\n", *a.TotalFrames)
	return nil
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	cfg, raw, err := loadAndCalibrate(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	kp, o, err := pipeline.Preprocess(cfg, raw)
	printOutcome(cmd.ErrOrStderr(), o)
	if err != nil {
		return err
	}
	if err := keypoints.WriteCSVFile(outPath, kp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d frames to %s\n", kp.Len(), outPath)
	return nil
}

func runAnalyse(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadExperimentConfig(configPath)
	if err != nil {
		return err
	}
	cal, err := cfg.Calibration()
	if err != nil {
		return err
	}
	kp, err := keypoints.ReadCSVFile(keypointsPath)
	if err != nil {
		return err
	}
	res, o, err := pipeline.Analyse(cfg, kp, cal)
	printOutcome(cmd.ErrOrStderr(), o)
	if err != nil {
		return err
	}
	if err := writeResults(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if summaryPath == "" {
		return nil
	}
	summary, err := pipeline.Summaries(cfg, res, cal)
	if err != nil {
		return err
	}
	if err := results.WriteFile(summaryPath, func(w io.Writer) error { return results.WriteSummariesCSV(w, summary) }); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d summary rows to %s\n", len(summary), summaryPath)
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadExperimentConfig(configPath)
	if err != nil {
		return err
	}
	probs, err := results.ReadCSVFile(probsPath)
	if err != nil {
		return err
	}
	pred, o, err := classify.Classify(probs, cfg.ToClassifyConfig())
	printOutcome(cmd.ErrOrStderr(), o)
	if err != nil {
		return err
	}
	return writeResults(cmd.OutOrStdout(), pred)
}

// writeResults writes res to --out and, when set, its bouts to --bouts.
func writeResults(w io.Writer, res *results.Table) error {
	if err := results.WriteFile(outPath, func(f io.Writer) error { return results.WriteCSV(f, res) }); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %d measures to %s\n", len(res.Measures()), outPath)
	if boutsPath == "" {
		return nil
	}
	if err := results.WriteFile(boutsPath, func(f io.Writer) error { return results.WriteBoutsCSV(f, res) }); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %d bouts to %s\n", len(results.BoutRows(res)), boutsPath)
	return nil
}
