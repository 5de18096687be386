package signal

import (
	"math"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
)

// Magnitude returns the Euclidean norm of one sample
func Magnitude(s Sample) float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Combine reduces three axis columns to one magnitude per index.
// sqrt(x²+y²+z²) is evaluated exactly as written so that magnitudes agree with
// values computed elsewhere from the same formula.
func Combine(x, y, z []float64) ([]float64, error) {
	if len(x) != len(y) || len(x) != len(z) {
		return nil, common.ShapeMismatch("axis lengths differ: x=%d y=%d z=%d", len(x), len(y), len(z))
	}

	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Sqrt(x[i]*x[i] + y[i]*y[i] + z[i]*z[i])
	}
	return out, nil
}

// Interleave flattens axis columns into x1,y1,z1,x2,y2,z2,...
func Interleave(x, y, z []float64) ([]float64, error) {
	if len(x) != len(y) || len(x) != len(z) {
		return nil, common.ShapeMismatch("axis lengths differ: x=%d y=%d z=%d", len(x), len(y), len(z))
	}

	out := make([]float64, 0, 3*len(x))
	for i := range x {
		out = append(out, x[i], y[i], z[i])
	}
	return out, nil
}

// Deinterleave splits x1,y1,z1,... back into axis columns
func Deinterleave(values []float64) (x, y, z []float64, err error) {
	if len(values)%3 != 0 {
		return nil, nil, nil, common.ShapeMismatch("interleaved length %d is not a multiple of 3", len(values))
	}

	n := len(values) / 3
	x = make([]float64, n)
	y = make([]float64, n)
	z = make([]float64, n)
	for i := range n {
		x[i] = values[3*i]
		y[i] = values[3*i+1]
		z[i] = values[3*i+2]
	}
	return x, y, z, nil
}
