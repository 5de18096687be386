package signal

import (
	"slices"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
)

// Axis selects one accelerometer axis
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "unknown"
	}
}

// Sample is one tri-axial accelerometer reading. Timestamp is in milliseconds.
type Sample struct {
	Timestamp int64   `json:"t" yaml:"t"`
	X         float64 `json:"x" yaml:"x"`
	Y         float64 `json:"y" yaml:"y"`
	Z         float64 `json:"z" yaml:"z"`
}

// Point is one element of a scalar series such as the motion magnitude
type Point struct {
	Timestamp int64   `json:"t"`
	Value     float64 `json:"v"`
}

// Buffer holds a chronologically ordered tri-axis sample sequence.
// A Buffer is never modified after construction.
type Buffer struct {
	samples []Sample
}

// NewBuffer copies samples and orders them by timestamp. The sort is stable so
// samples sharing a timestamp keep their arrival order.
func NewBuffer(samples []Sample) *Buffer {
	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, func(a, b Sample) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	return &Buffer{samples: sorted}
}

// NewAxesBuffer builds a Buffer from parallel columns
func NewAxesBuffer(timestamps []int64, x, y, z []float64) (*Buffer, error) {
	n := len(timestamps)
	if len(x) != n || len(y) != n || len(z) != n {
		return nil, common.ShapeMismatch("column lengths differ: time=%d x=%d y=%d z=%d",
			n, len(x), len(y), len(z))
	}

	samples := make([]Sample, n)
	for i := range n {
		samples[i] = Sample{Timestamp: timestamps[i], X: x[i], Y: y[i], Z: z[i]}
	}
	return NewBuffer(samples), nil
}

// Len returns the number of samples
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Samples returns a copy of the ordered samples
func (b *Buffer) Samples() []Sample {
	return slices.Clone(b.samples)
}

// Timestamps returns the ordered timestamps
func (b *Buffer) Timestamps() []int64 {
	ts := make([]int64, len(b.samples))
	for i, s := range b.samples {
		ts[i] = s.Timestamp
	}
	return ts
}

// Axis returns the values of one axis in timestamp order
func (b *Buffer) Axis(axis Axis) []float64 {
	values := make([]float64, len(b.samples))
	for i, s := range b.samples {
		switch axis {
		case AxisX:
			values[i] = s.X
		case AxisY:
			values[i] = s.Y
		case AxisZ:
			values[i] = s.Z
		}
	}
	return values
}

// Magnitudes returns the magnitude series of the buffer
func (b *Buffer) Magnitudes() []Point {
	points := make([]Point, len(b.samples))
	for i, s := range b.samples {
		points[i] = Point{Timestamp: s.Timestamp, Value: Magnitude(s)}
	}
	return points
}

// Values extracts the values of a point series
func Values(points []Point) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}
