package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/activity-spectra/internal/app"
)

const envPrefix = "ACTIVITY_SPECTRA"

var (
	configFile   string
	verbose      bool
	logLevel     string
	outputFormat string
	outputFile   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "activity-spectra",
	Short: "Accelerometer activity recognition from band-passed spectra",
	Long: `Feature extraction and inference for accelerometer-based human activity
recognition.

Every path runs the same pipeline: band-pass filter (Butterworth, causal),
fixed-length windowing and an FFT magnitude spectrum per window.

Key features:
- Batch extraction of labelled recordings into feature tables (csv, json, yaml, xlsx)
- HTTP inference service with Prometheus metrics
- MQTT streaming ingest with predictions cached in Redis
- Magnitude and per-axis feature variants`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/activity-spectra/activity-spectra.yaml)")

	// Output and logging flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "",
		"output format (json, table, csv, yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFile, "output-file", "",
		"write command output to a file instead of stdout")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "activity-spectra"))
		viper.AddConfigPath("/etc/activity-spectra")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("activity-spectra")
		viper.SetConfigType("yaml")
	}

	// Environment variable support, e.g. ACTIVITY_SPECTRA_FEATURES_WINDOW_SIZE_SEC
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}
}

// initializeConfig initializes configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	return bindFlags(cmd, viper.GetViper())
}

// bindFlags binds each command-local flag with a config key to viper, so
// that an unset flag falls back to the file or environment
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		key, ok := f.Annotations[configKeyAnnotation]
		if !ok || len(key) == 0 {
			return
		}

		if f.Changed {
			if err := v.BindPFlag(key[0], f); err != nil {
				lastErr = err
			}
			return
		}

		if err := v.BindEnv(key[0], envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key[0], ".", "_"))); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

const configKeyAnnotation = "activity-spectra/config-key"

// bindKey marks a flag as an override for a dotted config key
func bindKey(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// newApp builds the application from the global flags
func newApp() (*app.App, error) {
	return app.NewApp(&app.Context{
		ConfigFile:   configFile,
		OutputFile:   outputFile,
		OutputFormat: outputFormat,
		LogLevel:     logLevel,
		Verbose:      verbose,
		Viper:        viper.GetViper(),
	})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
