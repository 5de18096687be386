package cmd

import (
	"github.com/spf13/cobra"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Classify live accelerometer samples from MQTT",
	Long: `Subscribe to <prefix>/+/samples, keep a rolling buffer per device and
classify the latest window every shift interval.

Predictions are published to <prefix>/<device>/prediction and, when a Redis
address is configured, cached under <key_prefix>:<device>:latest with the
history appended to <key_prefix>:<device>:history.

Examples:
  activity-spectra stream --broker tcp://broker:1883 --model model.yaml
  activity-spectra stream --redis "" --shift 500ms`,
	Args: cobra.NoArgs,
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)

	flags := streamCmd.Flags()
	flags.String("broker", "", "MQTT broker URL")
	flags.String("topic-prefix", "", "MQTT topic prefix")
	flags.Duration("shift", 0, "interval between predictions per device")
	flags.String("redis", "", "Redis address for cached predictions (empty disables)")
	flags.String("model", "", "model bundle (yaml or json)")

	bindKey(flags, "broker", "mqtt.broker")
	bindKey(flags, "topic-prefix", "stream.topic_prefix")
	bindKey(flags, "shift", "stream.shift_interval")
	bindKey(flags, "redis", "redis.addr")
	bindKey(flags, "model", "model.path")
}

func runStream(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return a.Stream(ctx)
}
