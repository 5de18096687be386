package cmd

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP inference service",
	Long: `Serve POST /predict for single windows.

In raw input mode the body carries one window of samples ({"data": [...]})
which goes through the same band-pass and FFT as batch extraction before
classification. In features mode the body already holds the feature vector.

Examples:
  # Serve with the default 2 s windows on :8080
  activity-spectra serve --model model.yaml

  # Accept precomputed feature vectors
  activity-spectra serve --input-mode features --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.String("input-mode", "raw", "request body contents (raw, features)")
	flags.String("model", "", "model bundle (yaml or json)")
	flags.Duration("request-timeout", 0, "per-request timeout")

	bindKey(flags, "addr", "server.addr")
	bindKey(flags, "input-mode", "server.input_mode")
	bindKey(flags, "model", "model.path")
	bindKey(flags, "request-timeout", "server.request_timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return a.Serve(ctx)
}
