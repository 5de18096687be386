package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/activity-spectra/pkg/pipeline"
)

const sampleCSV = `time,x,y,z,label
1700000000040, 0.1, 9.7, 0.3, walking
1700000000000, 0.0, 9.8, 0.2, walking
1700000000020, -0.2, 9.9, 0.1, walking

`

func TestReadCSV(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	assert.Equal(t, int64(1700000000040), ds.Rows[0].Time)
	assert.Equal(t, 0.1, ds.Rows[0].X)
	assert.Equal(t, 9.7, ds.Rows[0].Y)
	assert.Equal(t, 0.3, ds.Rows[0].Z)
	assert.Equal(t, "walking", ds.Rows[0].Label)
	assert.Nil(t, ds.Rows[0].Magnitude)
	assert.False(t, ds.HasMagnitude())
}

func TestReadCSVMagnitudeColumnAndAliases(t *testing.T) {
	input := "Timestamp,X,Y,Z,filtered_magnitude\n0,3,4,0,5\n20,0,0,1,1\n"
	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	require.True(t, ds.HasMagnitude())
	assert.Equal(t, 5.0, *ds.Rows[0].Magnitude)
	assert.Equal(t, int64(20), ds.Rows[1].Time)
	assert.True(t, ds.Filtered)

	// a plain magnitude column wins and is filtered as usual
	input = "time,x,y,z,filtered_magnitude,magnitude\n0,3,4,0,0.5,5\n"
	ds, err = ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 5.0, *ds.Rows[0].Magnitude)
	assert.False(t, ds.Filtered)
}

func TestFilteredMagnitudeExportRoundTrip(t *testing.T) {
	p, err := pipeline.New(pipeline.DefaultConfig(), nil)
	require.NoError(t, err)

	n := 250
	magnitudes := make([]float64, n)
	for i := range magnitudes {
		magnitudes[i] = 9.81 + math.Sin(2*math.Pi*2*float64(i)/pipeline.DefaultSamplingRate)
	}
	filtered := p.Filter().Apply(magnitudes)

	var sb strings.Builder
	sb.WriteString("time,x,y,z,filtered_magnitude,label\n")
	for i, v := range filtered {
		fmt.Fprintf(&sb, "%d,0,%s,0,%s,walking\n", 20*i,
			strconv.FormatFloat(magnitudes[i], 'g', -1, 64), strconv.FormatFloat(v, 'g', -1, 64))
	}

	ds, err := ReadCSV(strings.NewReader(sb.String()))
	require.NoError(t, err)
	require.True(t, ds.Filtered)

	table, err := p.RunBatch(context.Background(), ds, "")
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())

	for i, row := range table.Rows {
		window := filtered[i*50 : i*50+100]
		assert.Equal(t, window, row.Signal, "window %d", i)

		expected, err := p.FeaturizeWindow(window)
		require.NoError(t, err)
		assert.Equal(t, expected, row.Features, "window %d", i)
		assert.Equal(t, "walking", row.Label)
	}
}

func TestReadCSVErrors(t *testing.T) {
	type test struct {
		name     string
		input    string
		contains string
	}

	tests := []test{
		{"empty", "", "no header"},
		{"missing column", "time,x,y\n0,1,2\n", `"z"`},
		{"bad number", "time,x,y,z\n0,1,abc,3\n", "row 2: invalid y"},
		{"bad time", "time,x,y,z\n0,1,2,3\nnow,1,2,3\n", "row 3: invalid time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"time", "x", "y", "z", "label"},
		{1700000000000, 0.25, 9.81, -0.5, "running"},
		{1700000000020, 0.5, 9.5, -0.25, "running"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	ds, err := ReadXLSX(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, int64(1700000000000), ds.Rows[0].Time)
	assert.Equal(t, 0.25, ds.Rows[0].X)
	assert.Equal(t, 9.81, ds.Rows[0].Y)
	assert.Equal(t, -0.5, ds.Rows[0].Z)
	assert.Equal(t, "running", ds.Rows[1].Label)
}

func testTable(t *testing.T) *pipeline.FeatureTable {
	t.Helper()

	ds := pipeline.Dataset{}
	for i := range 200 {
		ds.Rows = append(ds.Rows, pipeline.Row{
			Time: int64(20 * i),
			X:    float64(i%7) * 0.1,
			Y:    9.81,
			Z:    float64(i%3) * 0.2,
		})
	}

	p, err := pipeline.New(pipeline.DefaultConfig(), nil)
	require.NoError(t, err)
	table, err := p.RunBatch(context.Background(), ds, "walking")
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	return table
}

func TestWriteCSV(t *testing.T) {
	table := testTable(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1+table.Len())
	assert.Equal(t, strings.Join(table.Columns, ","), lines[0])

	fields := strings.Split(lines[2], ",")
	require.Len(t, fields, len(table.Columns))
	assert.Equal(t, "1000", fields[0])
	assert.Equal(t, "walking", fields[1])

	// shortest float formatting parses back exactly
	last, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	require.NoError(t, err)
	features := table.Rows[1].Features
	assert.Equal(t, features[len(features)-1], last)
}

func TestWriteJSONAndYAML(t *testing.T) {
	table := testTable(t)

	var jsonBuf bytes.Buffer
	require.NoError(t, Write(&jsonBuf, table, FormatJSON))
	var fromJSON pipeline.FeatureTable
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	assert.Equal(t, table.Columns, fromJSON.Columns)
	assert.Equal(t, table.Rows[2].Features, fromJSON.Rows[2].Features)

	var yamlBuf bytes.Buffer
	require.NoError(t, Write(&yamlBuf, table, FormatYAML))
	var fromYAML pipeline.FeatureTable
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, table.Len(), fromYAML.Len())
	assert.Equal(t, table.Rows[0].StartTime, fromYAML.Rows[0].StartTime)

	assert.Error(t, Write(&bytes.Buffer{}, table, Format("parquet")))
}

func TestWriteXLSX(t *testing.T) {
	table := testTable(t)
	path := filepath.Join(t.TempDir(), "features.xlsx")
	require.NoError(t, WriteFile(path, table, FormatFromPath(path)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 1+table.Len())
	assert.Equal(t, table.Columns, rows[0])
	assert.Equal(t, "0", rows[1][0])
	assert.Equal(t, "walking", rows[1][1])

	got, err := strconv.ParseFloat(rows[3][len(rows[3])-1], 64)
	require.NoError(t, err)
	features := table.Rows[2].Features
	assert.InDelta(t, features[len(features)-1], got, 1e-12)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatFromPath("out.csv"))
	assert.Equal(t, FormatJSON, FormatFromPath("out.JSON"))
	assert.Equal(t, FormatYAML, FormatFromPath("out.yml"))
	assert.Equal(t, FormatXLSX, FormatFromPath("out.xlsx"))
	assert.Equal(t, FormatCSV, FormatFromPath("out"))
}

func TestReadFileDispatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "walk.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	ds, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	_, err = ReadFile(filepath.Join(dir, "walk.parquet"))
	require.Error(t, err)
}
