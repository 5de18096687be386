package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/activity-spectra/configs"
	"github.com/RyanBlaney/activity-spectra/internal/server"
	"github.com/RyanBlaney/activity-spectra/pkg/common"
	"github.com/RyanBlaney/activity-spectra/pkg/model"
	"github.com/RyanBlaney/activity-spectra/pkg/pipeline"
)

// writeModel stores a two-class bundle that favours "walking" when the
// 2 Hz bin of a 100 sample window carries energy
func writeModel(t *testing.T, dir string) string {
	t.Helper()

	weights := [][]float64{make([]float64, 51), make([]float64, 51)}
	weights[1][4] = 0.1
	bundle := model.Bundle{
		Name:    "test",
		Version: "1",
		Classes: []string{"sitting_down", "walking"},
		Model:   model.LinearSpec{Weights: weights, Bias: []float64{0.5, 0}},
	}

	data, err := yaml.Marshal(bundle)
	require.NoError(t, err)
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func setupApp(t *testing.T, extra string) (*App, string) {
	t.Helper()

	dir := t.TempDir()
	modelPath := writeModel(t, dir)

	cfgPath := filepath.Join(dir, "activity-spectra.yaml")
	content := fmt.Sprintf(`
log_level: error
output_format: json
model:
  path: %s
  retry_attempts: 1
metrics:
  backend: none
%s`, modelPath, extra)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	ctx := &Context{ConfigFile: cfgPath, Viper: viper.New()}
	a, err := NewApp(ctx)
	require.NoError(t, err)
	return a, dir
}

func sinusoid(n int, freq float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / pipeline.DefaultSamplingRate)
	}
	return out
}

func TestNewAppLoadsConfigFile(t *testing.T) {
	a, _ := setupApp(t, `
features:
  window_size_sec: 4
  variant: raw_axis
`)

	cfg := a.Config()
	assert.Equal(t, 4.0, cfg.Features.WindowSizeSec)
	assert.Equal(t, pipeline.VariantRawAxis, cfg.Features.Variant)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, 600, a.Pipeline().Config().InputLength())
	assert.Same(t, a.Logger(), a.ctx.Logger)
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("features:\n  overlap: 1.5\n"), 0o644))

	_, err := NewApp(&Context{ConfigFile: cfgPath, Viper: viper.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")

	_, err = NewApp(&Context{ConfigFile: filepath.Join(dir, "missing.yaml"), Viper: viper.New()})
	assert.Error(t, err)
}

func TestCLIOverridesFileValues(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "c.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"output_format":"yaml","log_level":"info"}`), 0o644))

	a, err := NewApp(&Context{ConfigFile: cfgPath, OutputFormat: "table", LogLevel: "error", Viper: viper.New()})
	require.NoError(t, err)
	assert.Equal(t, "table", a.Config().OutputFormat)
	assert.Equal(t, "error", a.Config().LogLevel)
}

func TestPredictRawWindow(t *testing.T) {
	a, dir := setupApp(t, "")

	type test struct {
		name     string
		values   []float64
		expected string
	}

	tests := []test{
		{"flat window", make([]float64, 100), "sitting_down"},
		{"2 Hz motion", sinusoid(100, 2), "walking"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".json")
			body := `{"data":[` + joinFloats(tt.values) + `]}`
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			result, err := a.Predict(context.Background(), path, false)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Class)
			assert.InDelta(t, 1.0, result.Probabilities[0]+result.Probabilities[1], 1e-6)
			assert.Equal(t, model.DisplayName(tt.expected), result.DisplayClass)
		})
	}
}

func TestPredictReportsSpectralPeak(t *testing.T) {
	a, dir := setupApp(t, "")

	path := filepath.Join(dir, "window.yaml")
	data, err := yaml.Marshal(sinusoid(100, 2))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	result, err := a.Predict(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 4, result.PeakBin)
	assert.InDelta(t, 2.0, result.PeakHz, 1e-9)
}

func TestPredictRejectsWrongLength(t *testing.T) {
	a, dir := setupApp(t, "")

	path := filepath.Join(dir, "short.json")
	require.NoError(t, os.WriteFile(path, []byte(`[1,2,3]`), 0o644))

	_, err := a.Predict(context.Background(), path, false)
	require.Error(t, err)

	_, err = a.Predict(context.Background(), path, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 51")
}

func TestPredictFeatureVector(t *testing.T) {
	a, dir := setupApp(t, "")

	features := make([]float64, 51)
	features[4] = 40
	path := filepath.Join(dir, "features.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data":[`+joinFloats(features)+`]}`), 0o644))

	result, err := a.Predict(context.Background(), path, true)
	require.NoError(t, err)
	assert.Equal(t, "walking", result.Class)
	assert.Equal(t, 1, result.Index)
}

func TestLoadPredictorChecksFeatureLength(t *testing.T) {
	a, _ := setupApp(t, "features:\n  window_size_sec: 4\n")

	_, err := a.LoadPredictor(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 51 features but the pipeline produces 101")
}

func TestExtractWritesFeatureTable(t *testing.T) {
	a, dir := setupApp(t, "")

	var sb strings.Builder
	sb.WriteString("time,x,y,z,label\n")
	for i := range 250 {
		fmt.Fprintf(&sb, "%d,%g,9.81,0.1,walking\n", i*20, math.Sin(float64(i)*0.5))
	}
	input := filepath.Join(dir, "recording.csv")
	require.NoError(t, os.WriteFile(input, []byte(sb.String()), 0o644))

	out := filepath.Join(dir, "features.csv")
	summary, err := a.Extract(context.Background(), input, out, "")
	require.NoError(t, err)

	assert.Equal(t, 250, summary.InputRows)
	assert.Equal(t, 4, summary.Windows)
	assert.Equal(t, 2+100+51, summary.Columns)
	assert.Equal(t, "csv", summary.Format)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(written)), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "start_time,label,x1,"))
	assert.True(t, strings.HasPrefix(lines[1], "0,walking,"))
}

func TestDescribe(t *testing.T) {
	a, _ := setupApp(t, "")

	desc := a.Describe()
	geometry := desc["geometry"].(map[string]any)
	assert.Equal(t, 100, geometry["window_samples"])
	assert.Equal(t, 50, geometry["step_samples"])
	assert.Equal(t, 51, geometry["feature_length"])
	assert.Equal(t, "fft51", geometry["last_column"])
	assert.Equal(t, true, geometry["filter_stable"])

	filter := desc["filter"].(map[string]any)
	response := filter["response"].([]map[string]any)
	require.NotEmpty(t, response)
	assert.Equal(t, 0.0, response[0]["frequency_hz"])
	assert.InDelta(t, 0, response[0]["magnitude"], 1e-9)
}

func TestOutputResultsWritesFile(t *testing.T) {
	a, dir := setupApp(t, "")
	a.ctx.OutputFile = filepath.Join(dir, "out", "summary.json")

	err := a.OutputResults(map[string]any{"windows": 4, "score": math.Inf(1)})
	require.NoError(t, err)

	data, err := os.ReadFile(a.ctx.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "windows")
}

func TestBuildMetrics(t *testing.T) {
	a, _ := setupApp(t, "")

	m, err := a.buildMetrics()
	require.NoError(t, err)
	assert.Nil(t, m)

	a.config.Metrics.Backend = configs.MetricsPrometheus
	m, err = a.buildMetrics()
	require.NoError(t, err)
	assert.IsType(t, &server.PrometheusMetrics{}, m)
}

func TestSanitizeForJSON(t *testing.T) {
	type inner struct {
		Score float64 `json:"score"`
	}
	type outer struct {
		*inner
		Values []float64 `json:"values"`
		Hidden string    `json:"-"`
	}

	got := sanitizeForJSON(map[string]any{
		"nan":    math.NaN(),
		"list":   []any{math.Inf(-1), 1.5},
		"struct": outer{inner: &inner{Score: math.Inf(1)}, Values: []float64{math.NaN(), 2}},
	}).(map[string]any)

	assert.Equal(t, 0.0, got["nan"])
	assert.Equal(t, []any{0.0, 1.5}, got["list"])

	s := got["struct"].(map[string]any)
	assert.Equal(t, []float64{0, 2}, s["values"])
	assert.NotContains(t, s, "Hidden")
}

func TestReadWindowFile(t *testing.T) {
	dir := t.TempDir()

	type test struct {
		name     string
		file     string
		content  string
		expected []float64
		wantErr  bool
	}

	tests := []test{
		{"json object", "a.json", `{"data":[1,2,3]}`, []float64{1, 2, 3}, false},
		{"json array", "b.json", `[4,5]`, []float64{4, 5}, false},
		{"yaml object", "c.yaml", "data: [1.5, 2.5]\n", []float64{1.5, 2.5}, false},
		{"yaml list", "d.yml", "- 7\n- 8\n", []float64{7, 8}, false},
		{"garbage", "e.json", `{"data":"x"`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			got, err := readWindowFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestZapLogger(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	core, logs := observer.New(level)
	l := NewZapLogger(zap.New(core), level)

	var _ logging.Logger = l

	l.Debug("hidden")
	l.WithFields(logging.Fields{"component": "test"}).Info("shown", logging.Fields{"windows": 3})
	l.Error(errors.New("boom"), "failed")

	ctxLogger := l.WithContext(common.WithLogFields(context.Background(), logging.Fields{"request_id": "abc"}))
	ctxLogger.Warn("with context")

	l.SetLevel(logging.DebugLevel)
	l.Debug("now shown")

	entries := logs.FilterMessage("shown").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "test", entries[0].ContextMap()["component"])
	assert.EqualValues(t, 3, entries[0].ContextMap()["windows"])

	assert.Equal(t, 1, logs.FilterMessage("failed").Len())
	assert.Equal(t, "boom", logs.FilterMessage("failed").All()[0].ContextMap()["error"])
	assert.Equal(t, "abc", logs.FilterMessage("with context").All()[0].ContextMap()["request_id"])
	assert.Equal(t, 1, logs.FilterMessage("now shown").Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logging.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, logging.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, logging.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, logging.InfoLevel, ParseLevel("bogus"))
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, ",")
}
