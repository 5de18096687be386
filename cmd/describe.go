package cmd

import (
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show the resolved pipeline configuration and filter response",
	Long: `Print the window geometry, feature length, filter coefficients and the
filter's magnitude response at the band edges, after config file,
environment and flags have been merged.`,
	Args: cobra.NoArgs,
	RunE: runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	return a.OutputResults(a.Describe())
}
