package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/activity-spectra/internal/server"
	"github.com/RyanBlaney/activity-spectra/internal/stream"
	"github.com/RyanBlaney/activity-spectra/pkg/pipeline"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool      `mapstructure:"verbose"`
	LogLevel     string    `mapstructure:"log_level"`
	OutputFormat string    `mapstructure:"output_format"`
	Log          LogConfig `mapstructure:"log"`

	// Feature extraction, shared by the batch, single-window and streaming paths
	Features pipeline.Config `mapstructure:"features"`

	// Classifier bundle
	Model ModelConfig `mapstructure:"model"`

	// Inference service
	Server server.Config `mapstructure:"server"`

	// Streaming ingest
	MQTT   stream.MQTTConfig  `mapstructure:"mqtt"`
	Stream stream.Config      `mapstructure:"stream"`
	Redis  stream.RedisConfig `mapstructure:"redis"`

	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig selects the log encoding
type LogConfig struct {
	Format string `mapstructure:"format"` // text or json
}

// ModelConfig locates the classifier bundle
type ModelConfig struct {
	Path          string        `mapstructure:"path"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// MetricsConfig selects where service metrics go
type MetricsConfig struct {
	Backend string   `mapstructure:"backend"` // prometheus, datadog or none
	LogPath string   `mapstructure:"log_path"`
	Tags    []string `mapstructure:"tags"`
}

const (
	LogFormatText = "text"
	LogFormatJSON = "json"

	MetricsPrometheus = "prometheus"
	MetricsDatadog    = "datadog"
	MetricsNone       = "none"
)

// LoadConfig fills in defaults on v and decodes it
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	setDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if err := config.Features.Validate(); err != nil {
		return fmt.Errorf("invalid features configuration: %w", err)
	}

	switch config.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", config.Log.Format)
	}

	if config.Model.RetryAttempts < 1 {
		return fmt.Errorf("model retry attempts must be at least 1")
	}

	if config.Model.RetryDelay < 0 {
		return fmt.Errorf("model retry delay cannot be negative")
	}

	switch config.Server.InputMode {
	case server.InputRaw, server.InputFeatures:
	default:
		return fmt.Errorf("unknown server input mode %q", config.Server.InputMode)
	}

	if config.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}

	if config.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server max body bytes must be positive")
	}

	if config.Stream.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}

	if config.Stream.ShiftInterval <= 0 {
		return fmt.Errorf("stream shift interval must be positive")
	}

	switch config.Metrics.Backend {
	case MetricsPrometheus, MetricsDatadog, MetricsNone:
	default:
		return fmt.Errorf("unknown metrics backend %q", config.Metrics.Backend)
	}

	return nil
}
