package pipeline

import (
	"fmt"
	"runtime"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
	"github.com/RyanBlaney/activity-spectra/pkg/filters"
	"github.com/RyanBlaney/activity-spectra/pkg/spectral"
	"github.com/RyanBlaney/activity-spectra/pkg/windowing"
)

// Variant selects which signal the pipeline featurizes
type Variant string

const (
	// VariantMagnitude featurizes sqrt(x²+y²+z²)
	VariantMagnitude Variant = "magnitude"
	// VariantRawAxis featurizes each axis separately, concatenated x|y|z
	VariantRawAxis Variant = "raw_axis"
)

// FilterPolicy selects where the band-pass filter runs in the batch path
type FilterPolicy string

const (
	// FilterPerWindow filters every window from zero state, exactly like the
	// single-window path. Batch rows and RunSingle results are identical.
	FilterPerWindow FilterPolicy = "window"
	// FilterSeries filters the whole series once before windowing. Filter state
	// then crosses window boundaries, so RunSingle on a raw window does not
	// reproduce these rows.
	FilterSeries FilterPolicy = "series"
)

// Defaults shared by every entry point
const (
	DefaultSamplingRate  = filters.DefaultSampleRate
	DefaultWindowSizeSec = 2.0
	DefaultOverlap       = 0.5
	DefaultLowCut        = filters.DefaultLowCut
	DefaultHighCut       = filters.DefaultHighCut
	DefaultFilterOrder   = filters.DefaultOrder
)

// Config is the single configuration object for batch and single-window
// feature extraction
type Config struct {
	SamplingRate   float64      `json:"sampling_rate" yaml:"sampling_rate" mapstructure:"sampling_rate"`
	WindowSizeSec  float64      `json:"window_size_sec" yaml:"window_size_sec" mapstructure:"window_size_sec"`
	Overlap        float64      `json:"overlap" yaml:"overlap" mapstructure:"overlap"`
	LowCut         float64      `json:"lowcut" yaml:"lowcut" mapstructure:"lowcut"`
	HighCut        float64      `json:"highcut" yaml:"highcut" mapstructure:"highcut"`
	FilterOrder    int          `json:"filter_order" yaml:"filter_order" mapstructure:"filter_order"`
	Variant        Variant      `json:"variant" yaml:"variant" mapstructure:"variant"`
	FilterPolicy   FilterPolicy `json:"filter_policy" yaml:"filter_policy" mapstructure:"filter_policy"`
	IncludeSignal  bool         `json:"include_signal" yaml:"include_signal" mapstructure:"include_signal"`
	RequireWindows bool         `json:"require_windows" yaml:"require_windows" mapstructure:"require_windows"`
	Workers        int          `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns 2 s windows with 50% overlap at 50 Hz, band-passed
// to 0.4-15 Hz with an order 5 Butterworth filter
func DefaultConfig() Config {
	return Config{
		SamplingRate:  DefaultSamplingRate,
		WindowSizeSec: DefaultWindowSizeSec,
		Overlap:       DefaultOverlap,
		LowCut:        DefaultLowCut,
		HighCut:       DefaultHighCut,
		FilterOrder:   DefaultFilterOrder,
		Variant:       VariantMagnitude,
		FilterPolicy:  FilterPerWindow,
		IncludeSignal: true,
	}
}

// Validate rejects configurations that cannot produce windows or a stable filter
func (c Config) Validate() error {
	switch c.Variant {
	case VariantMagnitude, VariantRawAxis:
	default:
		return common.InvalidConfiguration("unknown variant %q (valid: %s, %s)", c.Variant, VariantMagnitude, VariantRawAxis)
	}

	switch c.FilterPolicy {
	case FilterPerWindow, FilterSeries:
	default:
		return common.InvalidConfiguration("unknown filter policy %q (valid: %s, %s)", c.FilterPolicy, FilterPerWindow, FilterSeries)
	}

	if c.Workers < 0 {
		return common.InvalidConfiguration("workers must not be negative, got %d", c.Workers)
	}

	if _, err := windowing.Resolve(c.WindowSizeSec, c.Overlap, c.SamplingRate); err != nil {
		return err
	}

	return c.Bandpass().Validate()
}

// Bandpass returns the filter design derived from this configuration
func (c Config) Bandpass() filters.BandpassConfig {
	return filters.BandpassConfig{
		LowCut:     c.LowCut,
		HighCut:    c.HighCut,
		SampleRate: c.SamplingRate,
		Order:      c.FilterOrder,
	}
}

// WindowSamples returns the number of samples per window
func (c Config) WindowSamples() int {
	return windowing.WindowSamples(c.WindowSizeSec, c.SamplingRate)
}

// Step returns the hop between window starts in samples
func (c Config) Step() int {
	return windowing.Step(c.WindowSamples(), c.Overlap)
}

// Axes returns how many signals are featurized per window
func (c Config) Axes() int {
	if c.Variant == VariantRawAxis {
		return 3
	}
	return 1
}

// InputLength returns the number of values RunSingle expects
func (c Config) InputLength() int {
	return c.Axes() * c.WindowSamples()
}

// FeatureLength returns the number of spectral features per window
func (c Config) FeatureLength() int {
	return c.Axes() * spectral.FeatureLength(c.WindowSamples())
}

// Columns returns the feature table header.
//
//	magnitude: start_time, label, x1..xN, fft1..fftM
//	raw_axis:  start_time, label, x1,y1,z1..xN,yN,zN, fft_x1..fft_xM, fft_y1..fft_yM, fft_z1..fft_zM
//
// Time-domain columns are present only with IncludeSignal.
func (c Config) Columns() []string {
	n := c.WindowSamples()
	m := spectral.FeatureLength(n)

	columns := make([]string, 0, 2+c.InputLength()+c.FeatureLength())
	columns = append(columns, "start_time", "label")

	if c.IncludeSignal {
		for i := 1; i <= n; i++ {
			if c.Variant == VariantRawAxis {
				columns = append(columns, fmt.Sprintf("x%d", i), fmt.Sprintf("y%d", i), fmt.Sprintf("z%d", i))
			} else {
				columns = append(columns, fmt.Sprintf("x%d", i))
			}
		}
	}

	if c.Variant == VariantRawAxis {
		for _, axis := range []string{"x", "y", "z"} {
			for i := 1; i <= m; i++ {
				columns = append(columns, fmt.Sprintf("fft_%s%d", axis, i))
			}
		}
	} else {
		for i := 1; i <= m; i++ {
			columns = append(columns, fmt.Sprintf("fft%d", i))
		}
	}

	return columns
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
