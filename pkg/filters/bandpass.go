package filters

import (
	"github.com/RyanBlaney/activity-spectra/pkg/common"
)

// Default band-pass parameters for 50 Hz accelerometer data
const (
	DefaultLowCut     = 0.4
	DefaultHighCut    = 15.0
	DefaultSampleRate = 50.0
	DefaultOrder      = 5
)

// BandpassConfig describes a Butterworth band-pass design
type BandpassConfig struct {
	LowCut     float64 `json:"lowcut" yaml:"lowcut"`
	HighCut    float64 `json:"highcut" yaml:"highcut"`
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`
	Order      int     `json:"order" yaml:"order"`
}

// DefaultBandpassConfig returns the 0.4-15 Hz, order 5 design at 50 Hz
func DefaultBandpassConfig() BandpassConfig {
	return BandpassConfig{
		LowCut:     DefaultLowCut,
		HighCut:    DefaultHighCut,
		SampleRate: DefaultSampleRate,
		Order:      DefaultOrder,
	}
}

// Validate checks that the band lies strictly inside (0, Nyquist)
func (c BandpassConfig) Validate() error {
	if c.SampleRate <= 0 {
		return common.InvalidConfiguration("sample rate must be positive, got %g", c.SampleRate)
	}
	if c.Order < 1 {
		return common.InvalidConfiguration("filter order must be at least 1, got %d", c.Order)
	}
	return validCutoffs(c.LowCut, c.HighCut, c.SampleRate)
}

// Bandpass is a designed band-pass filter.
//
// Every Apply call starts from a zero filter state, so a Bandpass carries no
// memory between calls and may be shared between goroutines.
type Bandpass struct {
	config       BandpassConfig
	coefficients Coefficients
}

// NewBandpass designs the filter once for the given configuration
func NewBandpass(cfg BandpassConfig) (*Bandpass, error) {
	coeffs, err := DesignButterworth(cfg)
	if err != nil {
		return nil, err
	}

	if !coeffs.Stable() {
		return nil, common.InvalidConfiguration(
			"band-pass design %.3g-%.3g Hz (order %d, fs %.3g Hz) is numerically unstable",
			cfg.LowCut, cfg.HighCut, cfg.Order, cfg.SampleRate)
	}

	return &Bandpass{
		config:       cfg,
		coefficients: coeffs,
	}, nil
}

// Apply filters signal causally and returns a new slice of equal length
func (bp *Bandpass) Apply(signal []float64) []float64 {
	return bp.coefficients.Filter(signal)
}

// Config returns the design parameters
func (bp *Bandpass) Config() BandpassConfig {
	return bp.config
}

// Coefficients returns a copy of the transfer function coefficients.
// Useful for debugging or implementing the filter elsewhere.
func (bp *Bandpass) Coefficients() Coefficients {
	b := make([]float64, len(bp.coefficients.B))
	a := make([]float64, len(bp.coefficients.A))
	copy(b, bp.coefficients.B)
	copy(a, bp.coefficients.A)
	return Coefficients{B: b, A: a}
}

// GetFrequencyResponse computes the magnitude and phase response at the given frequency in Hz
func (bp *Bandpass) GetFrequencyResponse(frequency float64) (magnitude, phase float64) {
	return bp.coefficients.FrequencyResponse(frequency, bp.config.SampleRate)
}
