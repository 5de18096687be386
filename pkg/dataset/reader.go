package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/RyanBlaney/activity-spectra/pkg/pipeline"
)

// columnAliases maps accepted header names to canonical columns
var columnAliases = map[string]string{
	"time":               "time",
	"timestamp":          "time",
	"t":                  "time",
	"x":                  "x",
	"y":                  "y",
	"z":                  "z",
	"magnitude":          "magnitude",
	"filtered_magnitude": "filtered_magnitude",
	"label":              "label",
	"activity":           "label",
}

var requiredColumns = []string{"time", "x", "y", "z"}

// ReadFile loads a dataset from a .csv or .xlsx file
func ReadFile(path string) (pipeline.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.Dataset{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(f)
	default:
		return pipeline.Dataset{}, fmt.Errorf("unsupported dataset format: %s", ext)
	}
}

// ReadCSV parses a headed CSV table with time,x,y,z and optional magnitude and
// label columns. A filtered_magnitude column is used only when no magnitude
// column is present, and marks the dataset as already filtered.
func ReadCSV(r io.Reader) (pipeline.Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return pipeline.Dataset{}, fmt.Errorf("failed to read csv: %w", err)
	}
	return parseRecords(records)
}

// ReadXLSX parses the first sheet of a workbook laid out like the CSV input
func ReadXLSX(r io.Reader) (pipeline.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return pipeline.Dataset{}, fmt.Errorf("failed to parse workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return pipeline.Dataset{}, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return pipeline.Dataset{}, fmt.Errorf("failed to read rows: %w", err)
	}
	return parseRecords(rows)
}

func parseRecords(records [][]string) (pipeline.Dataset, error) {
	if len(records) == 0 {
		return pipeline.Dataset{}, errors.New("dataset has no header row")
	}

	header := make(map[string]int)
	for i, name := range records[0] {
		key := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := columnAliases[key]; ok {
			if _, seen := header[canonical]; !seen {
				header[canonical] = i
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := header[col]; !ok {
			return pipeline.Dataset{}, fmt.Errorf("dataset is missing required column %q", col)
		}
	}

	filtered := false
	if idx, ok := header["filtered_magnitude"]; ok {
		if _, plain := header["magnitude"]; !plain {
			header["magnitude"] = idx
			filtered = true
		}
	}

	rows := make([]pipeline.Row, 0, len(records)-1)
	for i, record := range records[1:] {
		line := i + 2
		if isBlank(record) {
			continue
		}

		var row pipeline.Row
		var err error

		if row.Time, err = parseTime(cell(record, header["time"])); err != nil {
			return pipeline.Dataset{}, fmt.Errorf("row %d: invalid time: %w", line, err)
		}
		if row.X, err = parseFloat(cell(record, header["x"])); err != nil {
			return pipeline.Dataset{}, fmt.Errorf("row %d: invalid x: %w", line, err)
		}
		if row.Y, err = parseFloat(cell(record, header["y"])); err != nil {
			return pipeline.Dataset{}, fmt.Errorf("row %d: invalid y: %w", line, err)
		}
		if row.Z, err = parseFloat(cell(record, header["z"])); err != nil {
			return pipeline.Dataset{}, fmt.Errorf("row %d: invalid z: %w", line, err)
		}

		if idx, ok := header["magnitude"]; ok {
			if raw := cell(record, idx); raw != "" {
				m, err := parseFloat(raw)
				if err != nil {
					return pipeline.Dataset{}, fmt.Errorf("row %d: invalid magnitude: %w", line, err)
				}
				row.Magnitude = &m
			}
		}
		if idx, ok := header["label"]; ok {
			row.Label = cell(record, idx)
		}

		rows = append(rows, row)
	}

	return pipeline.Dataset{Rows: rows, Filtered: filtered}, nil
}

func cell(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// parseTime accepts integer milliseconds, tolerating spreadsheet exports like "1700000000000.0"
func parseTime(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
