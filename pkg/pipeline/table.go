package pipeline

import (
	"github.com/RyanBlaney/activity-spectra/pkg/common"
	"github.com/RyanBlaney/activity-spectra/pkg/signal"
)

// Row is one accelerometer reading of a batch input table
type Row struct {
	Time      int64    `json:"time" yaml:"time"`
	X         float64  `json:"x" yaml:"x"`
	Y         float64  `json:"y" yaml:"y"`
	Z         float64  `json:"z" yaml:"z"`
	Magnitude *float64 `json:"magnitude,omitempty" yaml:"magnitude,omitempty"`
	Label     string   `json:"label,omitempty" yaml:"label,omitempty"`
}

// Dataset is the batch input: rows in any order.
//
// Filtered marks a magnitude column that was band-passed upstream, so the
// magnitude variant windows it without filtering again.
type Dataset struct {
	Rows     []Row `json:"rows" yaml:"rows"`
	Filtered bool  `json:"filtered,omitempty" yaml:"filtered,omitempty"`
}

// NewDataset builds a dataset from parallel columns
func NewDataset(timestamps []int64, x, y, z []float64) (Dataset, error) {
	n := len(timestamps)
	if len(x) != n || len(y) != n || len(z) != n {
		return Dataset{}, common.ShapeMismatch("column lengths differ: time=%d x=%d y=%d z=%d",
			n, len(x), len(y), len(z))
	}

	rows := make([]Row, n)
	for i := range n {
		rows[i] = Row{Time: timestamps[i], X: x[i], Y: y[i], Z: z[i]}
	}
	return Dataset{Rows: rows}, nil
}

// DatasetFromSamples converts tri-axis samples into a dataset
func DatasetFromSamples(samples []signal.Sample) Dataset {
	rows := make([]Row, len(samples))
	for i, s := range samples {
		rows[i] = Row{Time: s.Timestamp, X: s.X, Y: s.Y, Z: s.Z}
	}
	return Dataset{Rows: rows}
}

// Len returns the number of rows
func (d Dataset) Len() int {
	return len(d.Rows)
}

// HasMagnitude reports whether every row carries a precomputed magnitude
func (d Dataset) HasMagnitude() bool {
	if len(d.Rows) == 0 {
		return false
	}
	for _, r := range d.Rows {
		if r.Magnitude == nil {
			return false
		}
	}
	return true
}

// prefiltered reports whether the magnitude column can be windowed as is
func (d Dataset) prefiltered() bool {
	return d.Filtered && d.HasMagnitude()
}

// FeatureRow is one window of the batch output
type FeatureRow struct {
	StartTime int64     `json:"start_time" yaml:"start_time"`
	Label     string    `json:"label" yaml:"label"`
	Signal    []float64 `json:"signal,omitempty" yaml:"signal,omitempty"`
	Features  []float64 `json:"features" yaml:"features"`
}

// Values returns the row laid out like the table columns after start_time and label
func (r FeatureRow) Values() []float64 {
	values := make([]float64, 0, len(r.Signal)+len(r.Features))
	values = append(values, r.Signal...)
	return append(values, r.Features...)
}

// FeatureTable is the batch output, one row per window in window order
type FeatureTable struct {
	Columns []string     `json:"columns" yaml:"columns"`
	Rows    []FeatureRow `json:"rows" yaml:"rows"`
}

// Len returns the number of rows
func (t *FeatureTable) Len() int {
	return len(t.Rows)
}

// Features returns the spectral part of every row
func (t *FeatureTable) Features() [][]float64 {
	out := make([][]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Features
	}
	return out
}

// Append adds the rows of other. Both tables must share a column layout.
func (t *FeatureTable) Append(other *FeatureTable) error {
	if other == nil {
		return nil
	}
	if len(t.Columns) == 0 {
		t.Columns = other.Columns
	} else if len(other.Columns) != len(t.Columns) {
		return common.ShapeMismatch("cannot append table with %d columns to table with %d columns",
			len(other.Columns), len(t.Columns))
	}
	t.Rows = append(t.Rows, other.Rows...)
	return nil
}
