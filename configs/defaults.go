package configs

import (
	"time"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/activity-spectra/internal/server"
	"github.com/RyanBlaney/activity-spectra/pkg/pipeline"
)

// setDefaults sets default configuration values for all components
func setDefaults(v *viper.Viper) {
	// Application defaults
	if !v.IsSet("log_level") {
		v.Set("log_level", "info")
	}
	if !v.IsSet("output_format") {
		v.Set("output_format", "table")
	}
	if !v.IsSet("log.format") {
		v.Set("log.format", LogFormatText)
	}

	setFeatureDefaults(v)

	// Model defaults
	if !v.IsSet("model.path") {
		v.Set("model.path", "model.yaml")
	}
	if !v.IsSet("model.retry_attempts") {
		v.Set("model.retry_attempts", 3)
	}
	if !v.IsSet("model.retry_delay") {
		v.Set("model.retry_delay", 2*time.Second)
	}

	setServerDefaults(v)
	setStreamDefaults(v)

	// Metrics defaults
	if !v.IsSet("metrics.backend") {
		v.Set("metrics.backend", MetricsPrometheus)
	}
	if !v.IsSet("metrics.log_path") {
		v.Set("metrics.log_path", "/tmp/activity-spectra-metrics.log")
	}
	if !v.IsSet("metrics.tags") {
		v.Set("metrics.tags", []string{"service:activity-spectra"})
	}
}

// setFeatureDefaults mirrors pipeline.DefaultConfig so the file only has to
// name what it overrides
func setFeatureDefaults(v *viper.Viper) {
	d := pipeline.DefaultConfig()

	if !v.IsSet("features.sampling_rate") {
		v.Set("features.sampling_rate", d.SamplingRate)
	}
	if !v.IsSet("features.window_size_sec") {
		v.Set("features.window_size_sec", d.WindowSizeSec)
	}
	if !v.IsSet("features.overlap") {
		v.Set("features.overlap", d.Overlap)
	}
	if !v.IsSet("features.lowcut") {
		v.Set("features.lowcut", d.LowCut)
	}
	if !v.IsSet("features.highcut") {
		v.Set("features.highcut", d.HighCut)
	}
	if !v.IsSet("features.filter_order") {
		v.Set("features.filter_order", d.FilterOrder)
	}
	if !v.IsSet("features.variant") {
		v.Set("features.variant", string(d.Variant))
	}
	if !v.IsSet("features.filter_policy") {
		v.Set("features.filter_policy", string(d.FilterPolicy))
	}
	if !v.IsSet("features.include_signal") {
		v.Set("features.include_signal", d.IncludeSignal)
	}
	if !v.IsSet("features.require_windows") {
		v.Set("features.require_windows", d.RequireWindows)
	}
	if !v.IsSet("features.workers") {
		v.Set("features.workers", 0)
	}
}

func setServerDefaults(v *viper.Viper) {
	if !v.IsSet("server.addr") {
		v.Set("server.addr", ":8080")
	}
	if !v.IsSet("server.input_mode") {
		v.Set("server.input_mode", string(server.InputRaw))
	}
	if !v.IsSet("server.request_timeout") {
		v.Set("server.request_timeout", 5*time.Second)
	}
	if !v.IsSet("server.read_timeout") {
		v.Set("server.read_timeout", 10*time.Second)
	}
	if !v.IsSet("server.write_timeout") {
		v.Set("server.write_timeout", 10*time.Second)
	}
	if !v.IsSet("server.shutdown_timeout") {
		v.Set("server.shutdown_timeout", 15*time.Second)
	}
	if !v.IsSet("server.max_body_bytes") {
		v.Set("server.max_body_bytes", 1<<20)
	}
}

func setStreamDefaults(v *viper.Viper) {
	// MQTT
	if !v.IsSet("mqtt.broker") {
		v.Set("mqtt.broker", "tcp://localhost:1883")
	}
	if !v.IsSet("mqtt.connect_timeout") {
		v.Set("mqtt.connect_timeout", 10*time.Second)
	}

	// Ingest
	if !v.IsSet("stream.topic_prefix") {
		v.Set("stream.topic_prefix", "activity")
	}
	if !v.IsSet("stream.qos") {
		v.Set("stream.qos", 1)
	}
	if !v.IsSet("stream.shift_interval") {
		v.Set("stream.shift_interval", time.Second)
	}

	// Redis
	if !v.IsSet("redis.addr") {
		v.Set("redis.addr", "localhost:6379")
	}
	if !v.IsSet("redis.key_prefix") {
		v.Set("redis.key_prefix", "activity")
	}
	if !v.IsSet("redis.latest_ttl") {
		v.Set("redis.latest_ttl", 10*time.Minute)
	}
	if !v.IsSet("redis.history_max_len") {
		v.Set("redis.history_max_len", 10000)
	}
}

// GetDefaultConfig returns the configuration used when no file or flags are given
func GetDefaultConfig() *Config {
	cfg, err := LoadConfig(viper.New())
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return cfg
}
