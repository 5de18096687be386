package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownLabel is returned for indices outside the label map
const UnknownLabel = "unknown"

// LabelMap resolves class indices to display names
type LabelMap map[int]string

// NewLabelMap indexes names by position
func NewLabelMap(names []string) LabelMap {
	m := make(LabelMap, len(names))
	for i, name := range names {
		m[i] = name
	}
	return m
}

// Name returns the label for index, or UnknownLabel
func (m LabelMap) Name(index int) string {
	if name, ok := m[index]; ok && name != "" {
		return name
	}
	return UnknownLabel
}

// DisplayName turns a label such as "climbing_stairs" into "Climbing Stairs"
func DisplayName(label string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(label, "_", " "))
}
