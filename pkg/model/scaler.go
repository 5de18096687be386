package model

import (
	"math"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
)

// Scaler standardises features as (x - mean) / scale
type Scaler struct {
	Mean  []float64 `json:"mean" yaml:"mean"`
	Scale []float64 `json:"scale" yaml:"scale"`
}

// Len returns the feature length the scaler was fitted on
func (s *Scaler) Len() int {
	return len(s.Mean)
}

// Validate checks that mean and scale agree and scale has no zero entries
func (s *Scaler) Validate() error {
	if len(s.Mean) != len(s.Scale) {
		return common.ShapeMismatch("scaler mean has %d entries, scale has %d", len(s.Mean), len(s.Scale))
	}
	for i, v := range s.Scale {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return common.InvalidConfiguration("scaler scale[%d] is %g", i, v)
		}
	}
	return nil
}

// Transform returns the standardised copy of features
func (s *Scaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.Mean) {
		return nil, common.InvalidInputLength(len(s.Mean), len(features))
	}

	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}
