package configs

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/activity-spectra/internal/server"
	"github.com/RyanBlaney/activity-spectra/pkg/pipeline"
)

func TestDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, pipeline.DefaultConfig(), cfg.Features)
	assert.Equal(t, 100, cfg.Features.WindowSamples())
	assert.Equal(t, server.InputRaw, cfg.Server.InputMode)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "activity", cfg.Stream.TopicPrefix)
	assert.Equal(t, byte(1), cfg.Stream.QoS)
	assert.Equal(t, time.Second, cfg.Stream.ShiftInterval)
	assert.Equal(t, 3, cfg.Model.RetryAttempts)
	assert.Equal(t, MetricsPrometheus, cfg.Metrics.Backend)
	assert.Equal(t, LogFormatText, cfg.Log.Format)

	require.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfigKeepsFileValues(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
log:
  format: json
features:
  window_size_sec: 4
  overlap: 0.75
  variant: raw_axis
  filter_policy: series
server:
  input_mode: features
  request_timeout: 250ms
stream:
  topic_prefix: lab
  shift_interval: 500ms
metrics:
  backend: datadog
  tags: [env:test]
`)))

	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 4.0, cfg.Features.WindowSizeSec)
	assert.Equal(t, 0.75, cfg.Features.Overlap)
	assert.Equal(t, pipeline.VariantRawAxis, cfg.Features.Variant)
	assert.Equal(t, pipeline.FilterSeries, cfg.Features.FilterPolicy)
	// untouched keys fall back to defaults
	assert.Equal(t, pipeline.DefaultSamplingRate, cfg.Features.SamplingRate)
	assert.Equal(t, pipeline.DefaultFilterOrder, cfg.Features.FilterOrder)

	assert.Equal(t, server.InputFeatures, cfg.Server.InputMode)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.RequestTimeout)
	assert.Equal(t, "lab", cfg.Stream.TopicPrefix)
	assert.Equal(t, 500*time.Millisecond, cfg.Stream.ShiftInterval)
	assert.Equal(t, MetricsDatadog, cfg.Metrics.Backend)
	assert.Equal(t, []string{"env:test"}, cfg.Metrics.Tags)
	assert.Equal(t, LogFormatJSON, cfg.Log.Format)

	require.NoError(t, ValidateConfig(cfg))
}

func TestValidateConfig(t *testing.T) {
	type test struct {
		name   string
		mutate func(*Config)
	}

	tests := []test{
		{"overlap of one", func(c *Config) { c.Features.Overlap = 1 }},
		{"unknown variant", func(c *Config) { c.Features.Variant = "gyro" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
		{"no model attempts", func(c *Config) { c.Model.RetryAttempts = 0 }},
		{"negative retry delay", func(c *Config) { c.Model.RetryDelay = -time.Second }},
		{"unknown input mode", func(c *Config) { c.Server.InputMode = "csv" }},
		{"zero request timeout", func(c *Config) { c.Server.RequestTimeout = 0 }},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }},
		{"qos out of range", func(c *Config) { c.Stream.QoS = 3 }},
		{"zero shift interval", func(c *Config) { c.Stream.ShiftInterval = 0 }},
		{"unknown metrics backend", func(c *Config) { c.Metrics.Backend = "statsd" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, ValidateConfig(cfg))
		})
	}
}
