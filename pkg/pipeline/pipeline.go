package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
	"github.com/RyanBlaney/activity-spectra/pkg/filters"
	"github.com/RyanBlaney/activity-spectra/pkg/signal"
	"github.com/RyanBlaney/activity-spectra/pkg/spectral"
	"github.com/RyanBlaney/activity-spectra/pkg/windowing"
)

// Pipeline extracts spectral features from accelerometer data.
//
// A Pipeline is immutable after New and safe for concurrent use. The batch
// and single-window paths share the same filter and featurizer instances.
type Pipeline struct {
	config     Config
	params     windowing.Params
	filter     *filters.Bandpass
	featurizer *spectral.Featurizer
	columns    []string
	logger     logging.Logger
}

// New validates cfg and designs the band-pass filter once
func New(cfg Config, logger logging.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	params, err := windowing.Resolve(cfg.WindowSizeSec, cfg.Overlap, cfg.SamplingRate)
	if err != nil {
		return nil, err
	}

	bp, err := filters.NewBandpass(cfg.Bandpass())
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		config:     cfg,
		params:     params,
		filter:     bp,
		featurizer: spectral.NewFeaturizer(),
		columns:    cfg.Columns(),
		logger:     logger.WithFields(logging.Fields{"component": "feature_pipeline"}),
	}

	p.logger.Debug("Feature pipeline initialized", logging.Fields{
		"variant":        cfg.Variant,
		"filter_policy":  cfg.FilterPolicy,
		"window_samples": params.WindowSamples,
		"step":           params.Step,
		"feature_length": cfg.FeatureLength(),
		"lowcut":         cfg.LowCut,
		"highcut":        cfg.HighCut,
		"filter_order":   cfg.FilterOrder,
	})

	return p, nil
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() Config {
	return p.config
}

// Columns returns the feature table header
func (p *Pipeline) Columns() []string {
	return slices.Clone(p.columns)
}

// Filter returns the designed band-pass filter
func (p *Pipeline) Filter() *filters.Bandpass {
	return p.filter
}

// RunSingle featurizes one pre-cut window.
//
// For the magnitude variant values holds WindowSamples magnitudes. For the
// raw-axis variant it holds 3*WindowSamples interleaved values x1,y1,z1,...
// The window is filtered from zero state and then featurized.
func (p *Pipeline) RunSingle(values []float64) ([]float64, error) {
	expected := p.config.InputLength()
	if len(values) != expected {
		return nil, common.InvalidInputLength(expected, len(values))
	}

	filtered, err := p.filterWindow(values)
	if err != nil {
		return nil, err
	}
	return p.FeaturizeWindow(filtered)
}

// FeaturizeWindow featurizes an already filtered window laid out like the
// RunSingle input. Under FilterSeries a batch row equals FeaturizeWindow of
// the matching slice of the filtered series.
func (p *Pipeline) FeaturizeWindow(filtered []float64) ([]float64, error) {
	expected := p.config.InputLength()
	if len(filtered) != expected {
		return nil, common.InvalidInputLength(expected, len(filtered))
	}

	if p.config.Variant == VariantMagnitude {
		return p.featurizer.Featurize(filtered), nil
	}

	x, y, z, err := signal.Deinterleave(filtered)
	if err != nil {
		return nil, err
	}
	features := make([]float64, 0, p.config.FeatureLength())
	for _, axis := range [][]float64{x, y, z} {
		features = append(features, p.featurizer.Featurize(axis)...)
	}
	return features, nil
}

// FilterSeries runs the band-pass filter over a whole series laid out like the
// RunSingle input
func (p *Pipeline) FilterSeries(values []float64) ([]float64, error) {
	return p.filterWindow(values)
}

func (p *Pipeline) filterWindow(values []float64) ([]float64, error) {
	if p.config.Variant == VariantMagnitude {
		return p.filter.Apply(values), nil
	}

	x, y, z, err := signal.Deinterleave(values)
	if err != nil {
		return nil, err
	}
	return signal.Interleave(p.filter.Apply(x), p.filter.Apply(y), p.filter.Apply(z))
}

// RunBatch converts a dataset into a feature table.
//
// Rows are ordered by timestamp, reduced to the variant's signal, windowed and
// featurized. Windows are featurized in parallel; output rows keep window
// order. A non-empty label overrides the per-row labels. A series shorter than
// one window yields an empty table unless RequireWindows is set. A Filtered
// dataset's magnitude column skips the filter stage.
func (p *Pipeline) RunBatch(ctx context.Context, ds Dataset, label string) (*FeatureTable, error) {
	started := time.Now()

	rows := slices.Clone(ds.Rows)
	slices.SortStableFunc(rows, func(a, b Row) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		default:
			return 0
		}
	})

	table := &FeatureTable{Columns: p.Columns(), Rows: []FeatureRow{}}

	ws := p.params.WindowSamples
	if len(rows) < ws {
		if p.config.RequireWindows {
			return nil, common.InsufficientData(ws, len(rows))
		}
		p.logger.Debug("Series shorter than one window, no rows produced", logging.Fields{
			"samples":        len(rows),
			"window_samples": ws,
		})
		return table, nil
	}

	series, err := p.seriesOf(rows)
	if err != nil {
		return nil, err
	}

	// an upstream filtered magnitude column is only windowed and featurized
	filter := !(p.config.Variant == VariantMagnitude && ds.prefiltered())

	if filter && p.config.FilterPolicy == FilterSeries {
		series, err = p.filterWindow(series)
		if err != nil {
			return nil, fmt.Errorf("failed to filter series: %w", err)
		}
	}

	times := make([]int64, len(rows))
	labels := make([]string, len(rows))
	for i, r := range rows {
		times[i], labels[i] = r.Time, r.Label
	}

	frames := p.params.Frames(times, labels)
	table.Rows = make([]FeatureRow, len(frames))
	axes := p.config.Axes()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.workers())

	for _, frame := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			window := series[axes*frame.StartIndex : axes*(frame.StartIndex+ws)]
			if filter && p.config.FilterPolicy == FilterPerWindow {
				filtered, err := p.filterWindow(window)
				if err != nil {
					return err
				}
				window = filtered
			}

			features, err := p.FeaturizeWindow(window)
			if err != nil {
				return fmt.Errorf("window %d: %w", frame.Index, err)
			}

			row := FeatureRow{
				StartTime: frame.StartTime,
				Label:     label,
				Features:  features,
			}
			if row.Label == "" {
				row.Label = frame.Label
			}
			if p.config.IncludeSignal {
				row.Signal = slices.Clone(window)
			}
			table.Rows[frame.Index] = row
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("Batch feature extraction completed", logging.Fields{
		"samples":     len(rows),
		"windows":     len(table.Rows),
		"prefiltered": !filter,
		"duration_ms": time.Since(started).Milliseconds(),
	})

	return table, nil
}

// seriesOf reduces ordered rows to the variant's signal. The magnitude variant
// uses the supplied magnitude column when every row has one.
func (p *Pipeline) seriesOf(rows []Row) ([]float64, error) {
	n := len(rows)
	x := make([]float64, n)
	y := make([]float64, n)
	z := make([]float64, n)
	for i, r := range rows {
		x[i], y[i], z[i] = r.X, r.Y, r.Z
	}

	if p.config.Variant == VariantRawAxis {
		return signal.Interleave(x, y, z)
	}

	if (Dataset{Rows: rows}).HasMagnitude() {
		magnitudes := make([]float64, n)
		for i, r := range rows {
			magnitudes[i] = *r.Magnitude
		}
		return magnitudes, nil
	}

	return signal.Combine(x, y, z)
}
