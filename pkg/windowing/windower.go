package windowing

import (
	"math"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
	"github.com/RyanBlaney/activity-spectra/pkg/signal"
)

// Window is one fixed-length slice of a series
type Window struct {
	Index      int       `json:"index"`
	StartIndex int       `json:"start_index"`
	StartTime  int64     `json:"start_time"`
	Values     []float64 `json:"values"`
	Label      string    `json:"label,omitempty"`
}

// Params holds the resolved segmentation parameters
type Params struct {
	WindowSamples int
	Step          int
}

// WindowSamples converts a window duration to a sample count
func WindowSamples(windowSizeSec, sampleRate float64) int {
	return int(math.Floor(windowSizeSec * sampleRate))
}

// Step returns the hop between consecutive window starts
func Step(windowSamples int, overlap float64) int {
	return int(math.Floor(float64(windowSamples) * (1 - overlap)))
}

// Resolve validates the segmentation parameters and converts them to samples
func Resolve(windowSizeSec, overlap, sampleRate float64) (Params, error) {
	if sampleRate <= 0 {
		return Params{}, common.InvalidConfiguration("sampling rate must be positive, got %g", sampleRate)
	}
	if overlap < 0 || overlap >= 1 || math.IsNaN(overlap) {
		return Params{}, common.InvalidConfiguration("overlap must be in [0, 1), got %g", overlap)
	}

	ws := WindowSamples(windowSizeSec, sampleRate)
	if ws <= 0 {
		return Params{}, common.InvalidConfiguration(
			"window of %gs at %g Hz has no samples", windowSizeSec, sampleRate)
	}

	step := Step(ws, overlap)
	if step <= 0 {
		return Params{}, common.InvalidConfiguration(
			"overlap %g leaves a step of %d samples for a %d sample window", overlap, step, ws)
	}

	return Params{WindowSamples: ws, Step: step}, nil
}

// Bounds returns the start index of every full window in a series of length n.
// A trailing segment shorter than windowSamples is dropped.
func Bounds(n, windowSamples, step int) []int {
	count := Count(n, windowSamples, step)
	if count == 0 {
		return nil
	}

	starts := make([]int, count)
	for i := range starts {
		starts[i] = i * step
	}
	return starts
}

// Count returns the number of full windows carved from a series of length n
func Count(n, windowSamples, step int) int {
	if windowSamples <= 0 || step <= 0 || n < windowSamples {
		return 0
	}
	return (n-windowSamples)/step + 1
}

// Segment slices series into overlapping windows of equal length. Each window
// is a copy, so later stages may not alias the input.
func Segment[T any](series []T, windowSizeSec, overlap, sampleRate float64) ([][]T, error) {
	p, err := Resolve(windowSizeSec, overlap, sampleRate)
	if err != nil {
		return nil, err
	}

	starts := Bounds(len(series), p.WindowSamples, p.Step)
	windows := make([][]T, len(starts))
	for i, start := range starts {
		w := make([]T, p.WindowSamples)
		copy(w, series[start:start+p.WindowSamples])
		windows[i] = w
	}
	return windows, nil
}

// SegmentPoints windows a scalar series and tags every window with the
// timestamp of its first element.
func SegmentPoints(points []signal.Point, windowSizeSec, overlap, sampleRate float64) ([]Window, error) {
	p, err := Resolve(windowSizeSec, overlap, sampleRate)
	if err != nil {
		return nil, err
	}
	return p.Points(points), nil
}

// Frames positions every full window of a series with the given timestamps.
// Values is left empty for callers that slice multi-axis data themselves.
// labels may be nil; otherwise each window takes the label of its first row.
func (p Params) Frames(times []int64, labels []string) []Window {
	starts := Bounds(len(times), p.WindowSamples, p.Step)
	windows := make([]Window, len(starts))
	for i, start := range starts {
		windows[i] = Window{
			Index:      i,
			StartIndex: start,
			StartTime:  times[start],
		}
		if start < len(labels) {
			windows[i].Label = labels[start]
		}
	}
	return windows
}

// Points applies already resolved parameters to a scalar series
func (p Params) Points(points []signal.Point) []Window {
	times := make([]int64, len(points))
	for i, pt := range points {
		times[i] = pt.Timestamp
	}

	windows := p.Frames(times, nil)
	for i := range windows {
		values := make([]float64, p.WindowSamples)
		for j := range p.WindowSamples {
			values[j] = points[windows[i].StartIndex+j].Value
		}
		windows[i].Values = values
	}
	return windows
}
