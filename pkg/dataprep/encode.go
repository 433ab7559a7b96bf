package dataprep

import (
	"errors"
	"fmt"
	"sort"
)

// OneHotEncoder expands categorical columns into indicator features.
// Categories are kept in order of first appearance during Fit. A category
// not seen during Fit encodes as all zeros for its column.
//
// All state is exported so a fitted encoder survives gob encoding.
type OneHotEncoder struct {
	Columns    []string
	Categories [][]string
}

// NewOneHotEncoder returns an unfitted encoder for the named columns.
func NewOneHotEncoder(columns ...string) *OneHotEncoder {
	return &OneHotEncoder{Columns: append([]string(nil), columns...)}
}

// Fit learns the categories of every column. Each row must have one value
// per column.
func (e *OneHotEncoder) Fit(rows [][]string) error {
	if len(rows) == 0 {
		return errors.New("onehot: no rows to fit")
	}
	e.Categories = make([][]string, len(e.Columns))
	seen := make([]map[string]bool, len(e.Columns))
	for j := range seen {
		seen[j] = map[string]bool{}
	}
	for i, row := range rows {
		if len(row) != len(e.Columns) {
			return fmt.Errorf("onehot: row %d has %d values, want %d", i, len(row), len(e.Columns))
		}
		for j, v := range row {
			if !seen[j][v] {
				seen[j][v] = true
				e.Categories[j] = append(e.Categories[j], v)
			}
		}
	}
	return nil
}

// Width is the number of output features.
func (e *OneHotEncoder) Width() int {
	w := 0
	for _, c := range e.Categories {
		w += len(c)
	}
	return w
}

// Transform appends the encoding of row to dst and returns the extended slice.
func (e *OneHotEncoder) Transform(dst []float64, row []string) []float64 {
	for j, cats := range e.Categories {
		var v string
		if j < len(row) {
			v = row[j]
		}
		for _, c := range cats {
			if c == v {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		}
	}
	return dst
}

// FeatureNames returns "<column>_<category>" for every output feature.
func (e *OneHotEncoder) FeatureNames() []string {
	names := make([]string, 0, e.Width())
	for j, cats := range e.Categories {
		for _, c := range cats {
			names = append(names, e.Columns[j]+"_"+c)
		}
	}
	return names
}

// LabelEncoder maps class names to dense integer labels. Classes are sorted
// so the mapping does not depend on row order.
type LabelEncoder struct {
	Classes []string
}

// Fit learns the sorted set of distinct labels.
func (l *LabelEncoder) Fit(labels []string) {
	seen := map[string]bool{}
	l.Classes = l.Classes[:0]
	for _, v := range labels {
		if !seen[v] {
			seen[v] = true
			l.Classes = append(l.Classes, v)
		}
	}
	sort.Strings(l.Classes)
}

// Transform encodes labels. An unseen label is an error.
func (l *LabelEncoder) Transform(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, v := range labels {
		idx := sort.SearchStrings(l.Classes, v)
		if idx == len(l.Classes) || l.Classes[idx] != v {
			return nil, fmt.Errorf("label: unknown class %q", v)
		}
		out[i] = idx
	}
	return out, nil
}

// Inverse maps an integer label back to its class name.
func (l *LabelEncoder) Inverse(label int) (string, error) {
	if label < 0 || label >= len(l.Classes) {
		return "", fmt.Errorf("label: %d out of range [0,%d)", label, len(l.Classes))
	}
	return l.Classes[label], nil
}

// Name is Inverse for display: out-of-range labels render as their number.
func (l *LabelEncoder) Name(label int) string {
	if name, err := l.Inverse(label); err == nil {
		return name
	}
	return fmt.Sprint(label)
}
