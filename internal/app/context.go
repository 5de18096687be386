package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/output"
	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/spf13/viper"
	"github.com/tunein/go-logging/v7/pkg/logger"
	"github.com/tunein/go-logging/v7/pkg/logger/logtypes"
	"github.com/tunein/go-logging/v7/pkg/rootlogger"

	"github.com/RyanBlaney/activity-spectra/configs"
	"github.com/RyanBlaney/activity-spectra/internal/server"
	"github.com/RyanBlaney/activity-spectra/internal/stream"
	"github.com/RyanBlaney/activity-spectra/pkg/dataset"
	"github.com/RyanBlaney/activity-spectra/pkg/model"
	"github.com/RyanBlaney/activity-spectra/pkg/pipeline"
	"github.com/RyanBlaney/activity-spectra/pkg/spectral"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	ConfigFile   string
	OutputFile   string
	OutputFormat string
	LogLevel     string
	Verbose      bool

	// Viper instance holding flags, env and file values. Defaults to the global one.
	Viper *viper.Viper

	// Runtime context
	Logger logging.Logger
	Config *configs.Config
}

// App handles the application lifecycle. Every command builds one App, so
// the batch, single-window and streaming paths share one pipeline.
type App struct {
	ctx      *Context
	config   *configs.Config
	logger   logging.Logger
	pipeline *pipeline.Pipeline
}

// NewApp loads configuration, sets up logging and builds the feature pipeline
func NewApp(ctx *Context) (*App, error) {
	config, err := loadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config

	log, err := setupLogging(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	ctx.Logger = log

	p, err := pipeline.New(config.Features, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature pipeline: %w", err)
	}

	log.Debug("Application initialized", logging.Fields{
		"config_file":    ctx.ConfigFile,
		"output_format":  config.OutputFormat,
		"variant":        config.Features.Variant,
		"filter_policy":  config.Features.FilterPolicy,
		"window_samples": config.Features.WindowSamples(),
		"feature_length": config.Features.FeatureLength(),
	})

	return &App{
		ctx:      ctx,
		config:   config,
		logger:   log,
		pipeline: p,
	}, nil
}

// Config returns the resolved configuration
func (a *App) Config() *configs.Config {
	return a.config
}

// Pipeline returns the shared feature pipeline
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Logger returns the application logger
func (a *App) Logger() logging.Logger {
	return a.logger
}

// LoadPredictor loads the model bundle and checks it consumes what the
// pipeline produces
func (a *App) LoadPredictor(ctx context.Context) (*model.Predictor, error) {
	cfg := a.config.Model
	bundle, err := model.LoadWithRetry(ctx, cfg.Path, cfg.RetryAttempts, cfg.RetryDelay, a.logger)
	if err != nil {
		return nil, err
	}

	if got, want := bundle.FeatureLength(), a.config.Features.FeatureLength(); got != want {
		return nil, fmt.Errorf("model %s expects %d features but the pipeline produces %d", cfg.Path, got, want)
	}

	return bundle.Predictor()
}

// Serve runs the inference service until ctx is cancelled
func (a *App) Serve(ctx context.Context) error {
	predictor, err := a.LoadPredictor(ctx)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	metrics, err := a.buildMetrics()
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}

	srv, err := server.New(a.config.Server, a.pipeline, predictor, a.logger, server.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}

// buildMetrics selects the metrics backend. DataDog metrics go through the
// rootcollector log, which has to be configured before the first Metric call.
func (a *App) buildMetrics() (server.Metrics, error) {
	cfg := a.config.Metrics
	switch cfg.Backend {
	case configs.MetricsNone:
		return nil, nil
	case configs.MetricsDatadog:
		err := rootlogger.Configure(logger.LogOptions{
			Out:          cfg.LogPath,
			ReopenSignal: syscall.SIGHUP,
			Level:        logtypes.InfoLevel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed configuring metrics log writer: %w", err)
		}
		return server.MultiMetrics{server.NewPrometheusMetrics(), server.NewCollectorMetrics(cfg.Tags...)}, nil
	default:
		return server.NewPrometheusMetrics(), nil
	}
}

// Stream runs the MQTT ingest loop until ctx is cancelled
func (a *App) Stream(ctx context.Context) error {
	predictor, err := a.LoadPredictor(ctx)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	client, err := stream.NewMQTTClient(a.config.MQTT, func(topic string, err error) {
		a.logger.Error(err, "Failed to handle sample message", logging.Fields{"topic": topic})
	})
	if err != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	defer client.Disconnect()

	var store stream.Store
	if a.config.Redis.Addr != "" {
		rdb, err := stream.NewRedisClient(ctx, a.config.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		store = stream.NewRedisStore(rdb, a.config.Redis)
	}

	ingestor, err := stream.NewIngestor(a.config.Stream, a.pipeline, predictor, client, store, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create ingestor: %w", err)
	}

	a.logger.Debug("Connected to MQTT broker", logging.Fields{
		"broker": a.config.MQTT.Broker,
		"redis":  a.config.Redis.Addr,
	})

	return ingestor.Run(ctx)
}

// ExtractSummary describes one batch extraction
type ExtractSummary struct {
	Input         string  `json:"input" yaml:"input"`
	Output        string  `json:"output" yaml:"output"`
	Format        string  `json:"format" yaml:"format"`
	InputRows     int     `json:"input_rows" yaml:"input_rows"`
	Windows       int     `json:"windows" yaml:"windows"`
	Columns       int     `json:"columns" yaml:"columns"`
	Variant       string  `json:"variant" yaml:"variant"`
	FilterPolicy  string  `json:"filter_policy" yaml:"filter_policy"`
	DurationMilli float64 `json:"duration_ms" yaml:"duration_ms"`
}

// Extract runs the batch path over a recorded dataset and writes the feature table
func (a *App) Extract(ctx context.Context, input, outputPath, label string) (*ExtractSummary, error) {
	start := time.Now()

	ds, err := dataset.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	table, err := a.pipeline.RunBatch(ctx, ds, label)
	if err != nil {
		return nil, fmt.Errorf("failed to extract features: %w", err)
	}

	format := dataset.FormatFromPath(outputPath)
	if err := dataset.WriteFile(outputPath, table, format); err != nil {
		return nil, fmt.Errorf("failed to write feature table: %w", err)
	}

	summary := &ExtractSummary{
		Input:         input,
		Output:        outputPath,
		Format:        string(format),
		InputRows:     ds.Len(),
		Windows:       table.Len(),
		Columns:       len(table.Columns),
		Variant:       string(a.config.Features.Variant),
		FilterPolicy:  string(a.config.Features.FilterPolicy),
		DurationMilli: float64(time.Since(start).Microseconds()) / 1000,
	}

	a.logger.Info("Feature table written", logging.Fields{
		"input":   input,
		"output":  outputPath,
		"windows": summary.Windows,
		"columns": summary.Columns,
	})

	return summary, nil
}

// PredictResult is the outcome of classifying one window from a file
type PredictResult struct {
	*model.Prediction
	DisplayClass string  `json:"display_class" yaml:"display_class"`
	PeakBin      int     `json:"peak_bin" yaml:"peak_bin"`
	PeakHz       float64 `json:"peak_hz" yaml:"peak_hz"`
}

// Predict classifies one raw window, or one feature vector when features is set
func (a *App) Predict(ctx context.Context, path string, features bool) (*PredictResult, error) {
	values, err := readWindowFile(path)
	if err != nil {
		return nil, err
	}

	predictor, err := a.LoadPredictor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	vector := values
	if !features {
		vector, err = a.pipeline.RunSingle(values)
		if err != nil {
			return nil, err
		}
	} else if want := a.config.Features.FeatureLength(); len(values) != want {
		return nil, fmt.Errorf("feature vector has %d values, expected %d", len(values), want)
	}

	prediction, err := predictor.Predict(ctx, vector)
	if err != nil {
		return nil, err
	}

	result := &PredictResult{
		Prediction:   prediction,
		DisplayClass: model.DisplayName(prediction.Class),
		PeakBin:      -1,
	}

	// the peak is only meaningful on a single-axis spectrum
	if a.config.Features.Variant == pipeline.VariantMagnitude {
		result.PeakBin = spectral.PeakBin(vector)
		result.PeakHz = spectral.BinFrequency(result.PeakBin, a.config.Features.WindowSamples(), a.config.Features.SamplingRate)
	}

	return result, nil
}

// Describe reports the resolved pipeline geometry and filter response
func (a *App) Describe() map[string]any {
	cfg := a.config.Features
	bp := a.pipeline.Filter()
	coeffs := bp.Coefficients()

	nyquist := cfg.SamplingRate / 2
	probe := []float64{0, cfg.LowCut, 1, 2, 5, 10, cfg.HighCut, nyquist}
	response := make([]map[string]any, 0, len(probe))
	for _, f := range probe {
		if f < 0 || f > nyquist {
			continue
		}
		mag, phase := bp.GetFrequencyResponse(f)
		response = append(response, map[string]any{
			"frequency_hz": f,
			"magnitude":    mag,
			"phase_rad":    phase,
		})
	}

	columns := a.pipeline.Columns()
	return map[string]any{
		"features": cfg,
		"geometry": map[string]any{
			"window_samples":  cfg.WindowSamples(),
			"step_samples":    cfg.Step(),
			"input_length":    cfg.InputLength(),
			"feature_length":  cfg.FeatureLength(),
			"total_columns":   len(columns),
			"first_column":    columns[0],
			"last_column":     columns[len(columns)-1],
			"bin_resolution":  cfg.SamplingRate / float64(cfg.WindowSamples()),
			"nyquist_hz":      nyquist,
			"filter_stable":   coeffs.Stable(),
			"filter_taps":     len(coeffs.B),
			"filter_order":    coeffs.Order(),
			"filter_policy":   cfg.FilterPolicy,
			"signal_variant":  cfg.Variant,
			"server_input":    a.config.Server.InputMode,
			"stream_interval": a.config.Stream.ShiftInterval.String(),
		},
		"filter": map[string]any{
			"b":        coeffs.B,
			"a":        coeffs.A,
			"response": response,
		},
	}
}

// OutputResults formats data with the configured formatter and writes it to
// the output file or stdout
func (a *App) OutputResults(data any) error {
	formatter := newFormatter(a.config.OutputFormat)

	formattedData, err := formatter.Format(data, true)
	if err != nil {
		// If JSON formatting fails due to infinite values, try to sanitize the data
		if strings.Contains(err.Error(), "unsupported value") {
			formattedData, err = formatter.Format(sanitizeForJSON(data), true)
		}
		if err != nil {
			return fmt.Errorf("failed to format output data: %w", err)
		}
	}

	if a.ctx.OutputFile != "" {
		return a.writeToFile(formattedData)
	}

	_, err = os.Stdout.Write(formattedData)
	return err
}

func newFormatter(format string) output.Formatter {
	switch format {
	case "yaml":
		return &output.YAMLFormatter{}
	case "csv":
		return &output.CSVFormatter{}
	case "table":
		return &output.TableFormatter{}
	default:
		return &output.JSONFormatter{}
	}
}

func (a *App) writeToFile(data []byte) error {
	dir := filepath.Dir(a.ctx.OutputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(a.ctx.OutputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	a.logger.Debug("Results written to file", logging.Fields{
		"output_file": a.ctx.OutputFile,
		"size_bytes":  len(data),
	})

	return nil
}
