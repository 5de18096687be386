package cmd

import (
	"github.com/spf13/cobra"
)

var predictFeatures bool

var predictCmd = &cobra.Command{
	Use:   "predict [flags] <window-file>",
	Short: "Classify one window from a file",
	Long: `Classify a single window without starting the service.

The file holds {"data": [...]} or a bare array, in JSON or YAML. Raw windows
run through the single-window pipeline first; with --features the values are
passed to the classifier as they are.

Examples:
  activity-spectra predict --model model.yaml window.json
  activity-spectra predict --features -o yaml features.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	flags := predictCmd.Flags()
	flags.BoolVar(&predictFeatures, "features", false, "the file holds a feature vector instead of raw samples")
	flags.String("model", "", "model bundle (yaml or json)")

	bindKey(flags, "model", "model.path")
}

func runPredict(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	result, err := a.Predict(cmd.Context(), args[0], predictFeatures)
	if err != nil {
		return err
	}

	return a.OutputResults(result)
}
