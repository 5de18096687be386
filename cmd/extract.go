package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	extractOutput string
	extractLabel  string
)

var extractCmd = &cobra.Command{
	Use:   "extract [flags] <recording>",
	Short: "Extract a feature table from a recording",
	Long: `Run the batch pipeline over a recording and write one row per window.

The recording is a CSV or XLSX file with time (ms), x, y and z columns and
optional magnitude and label columns. The table format follows the output
file extension: .csv, .json, .yaml or .xlsx.

Examples:
  # Label every window of a walking session
  activity-spectra extract --label walking --table walking.csv session.csv

  # Per-axis spectra into a spreadsheet
  activity-spectra extract --variant raw_axis --table features.xlsx session.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()
	flags.StringVarP(&extractOutput, "table", "t", "features.csv", "feature table to write")
	flags.StringVar(&extractLabel, "label", "", "label for every window (default: the recording's label column)")
	flags.String("variant", "", "feature variant (magnitude, raw_axis)")
	flags.String("filter-policy", "", "where the batch path filters (window, series)")
	flags.Float64("window", 0, "window length in seconds")
	flags.Float64("overlap", 0, "window overlap fraction in [0, 1)")
	flags.Bool("require-windows", false, "fail when the recording is shorter than one window")

	bindKey(flags, "variant", "features.variant")
	bindKey(flags, "filter-policy", "features.filter_policy")
	bindKey(flags, "window", "features.window_size_sec")
	bindKey(flags, "overlap", "features.overlap")
	bindKey(flags, "require-windows", "features.require_windows")
}

func runExtract(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	summary, err := a.Extract(cmd.Context(), args[0], extractOutput, extractLabel)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	return a.OutputResults(summary)
}
