// Package main implements the behaviour CLI: calibration, preprocessing,
// analysis and classification of keypoint recordings, batch processing and
// a read-only results server.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/behaviour.report/internal/monitoring"
	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/version"
)

var (
	logFormat string
	debug     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "behaviour",
	Short: "Analyse animal behaviour from pose-estimation keypoints",
	Long: `behaviour turns per-frame keypoint tracks into behavioural measures.

Each experiment is described by a keypoints CSV and a config file (YAML or
JSON). Calibration fills the config's auto values, preprocessing trims and
cleans the tracks, and the analyses derive speed, freezing, social distance
and region occupancy with their bouts and summaries.`,
	Version:      version.String(),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := monitoring.NewLogger(logFormat, debug)
		if err != nil {
			return err
		}
		monitoring.UseZap(l)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log encoding: console or json")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "behaviour %s\ncommit %s\nbuilt %s\n", version.Version, version.GitSHA, version.BuildTime)
	},
}

func printOutcome(w io.Writer, o outcome.Outcome) {
	fmt.Fprint(w, o.String())
}
