package signal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
)

func TestCombine(t *testing.T) {
	type test struct {
		name     string
		x, y, z  []float64
		expected []float64
	}

	tests := []test{
		{"unit triples", []float64{3, 0, 0}, []float64{4, 4, 0}, []float64{0, 0, 0}, []float64{5, 4, 0}},
		{"negative axes", []float64{-3}, []float64{-4}, []float64{0}, []float64{5}},
		{"three dimensions", []float64{1}, []float64{2}, []float64{2}, []float64{3}},
		{"empty", []float64{}, []float64{}, []float64{}, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Combine(tt.x, tt.y, tt.z)
			require.NoError(t, err)
			require.Len(t, got, len(tt.expected))
			for i := range got {
				assert.InDelta(t, tt.expected[i], got[i], 1e-12)
			}
		})
	}
}

func TestCombineShapeMismatch(t *testing.T) {
	_, err := Combine([]float64{1, 2}, []float64{1}, []float64{1, 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrShapeMismatch))
}

func TestMagnitudeMatchesCombine(t *testing.T) {
	s := Sample{Timestamp: 1, X: 0.3, Y: -9.81, Z: 1.7}
	combined, err := Combine([]float64{s.X}, []float64{s.Y}, []float64{s.Z})
	require.NoError(t, err)
	assert.Equal(t, combined[0], Magnitude(s))
}

func TestNewBufferSortsByTimestamp(t *testing.T) {
	in := []Sample{
		{Timestamp: 40, X: 4},
		{Timestamp: 0, X: 0},
		{Timestamp: 20, X: 2},
		{Timestamp: 20, X: 3},
	}

	b := NewBuffer(in)
	assert.Equal(t, []int64{0, 20, 20, 40}, b.Timestamps())
	assert.Equal(t, []float64{0, 2, 3, 4}, b.Axis(AxisX))

	// input must not be reordered
	assert.Equal(t, int64(40), in[0].Timestamp)
}

func TestNewAxesBuffer(t *testing.T) {
	b, err := NewAxesBuffer([]int64{20, 0}, []float64{3, 0}, []float64{4, 0}, []float64{0, 1})
	require.NoError(t, err)
	require.Equal(t, 2, b.Len())

	points := b.Magnitudes()
	assert.Equal(t, Point{Timestamp: 0, Value: 1}, points[0])
	assert.Equal(t, Point{Timestamp: 20, Value: 5}, points[1])
	assert.Equal(t, []float64{1, 5}, Values(points))

	_, err = NewAxesBuffer([]int64{0}, []float64{1, 2}, []float64{1}, []float64{1})
	assert.True(t, errors.Is(err, common.ErrShapeMismatch))
}

func TestInterleaveRoundTrip(t *testing.T) {
	x := []float64{1, 2}
	y := []float64{3, 4}
	z := []float64{5, 6}

	flat, err := Interleave(x, y, z)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 5, 2, 4, 6}, flat)

	gx, gy, gz, err := Deinterleave(flat)
	require.NoError(t, err)
	assert.Equal(t, x, gx)
	assert.Equal(t, y, gy)
	assert.Equal(t, z, gz)

	_, _, _, err = Deinterleave([]float64{1, 2})
	assert.True(t, errors.Is(err, common.ErrShapeMismatch))
}
