// Package dataset holds the tabular data that flows between stages.
//
// A Frame keeps every cell as its CSV text. Numeric interpretation happens at
// the point of use, so a frame can be written back out byte-compatible with
// what was read.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoColumn is returned when a named column is absent.
var ErrNoColumn = errors.New("column not found")

// Frame is a header plus string rows. All rows have len(Columns) cells.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// ReadCSV loads a CSV file with a header row.
func ReadCSV(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv %s: missing header row", filepath.Base(path))
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimPrefix(h, "\ufeff")
	}
	return &Frame{Columns: header, Rows: records[1:]}, nil
}

// WriteCSV writes the frame with its header, creating the parent directory.
func (f *Frame) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	w := csv.NewWriter(out)
	if err := w.Write(f.Columns); err != nil {
		out.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(f.Rows); err != nil {
		out.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	return out.Close()
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// Index returns the position of a column, or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the frame has the named column.
func (f *Frame) Has(name string) bool { return f.Index(name) >= 0 }

// Column returns the raw cells of a column.
func (f *Frame) Column(name string) ([]string, error) {
	idx := f.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("%q: %w", name, ErrNoColumn)
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Floats parses a column as float64. Empty cells are an error.
func (f *Frame) Floats(name string) ([]float64, error) {
	cells, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := ParseFloat(c)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// ParseFloat parses a numeric cell. Booleans are accepted as 0/1 because the
// one-hot encoder and some exports write them that way.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Select returns a frame with only the listed columns, in that order.
func (f *Frame) Select(cols ...string) (*Frame, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = f.Index(c)
		if idx[i] < 0 {
			return nil, fmt.Errorf("%q: %w", c, ErrNoColumn)
		}
	}
	out := &Frame{Columns: append([]string(nil), cols...), Rows: make([][]string, len(f.Rows))}
	for r, row := range f.Rows {
		nr := make([]string, len(idx))
		for i, j := range idx {
			nr[i] = row[j]
		}
		out.Rows[r] = nr
	}
	return out, nil
}

// Drop returns a frame without the named columns. Absent names are ignored.
func (f *Frame) Drop(cols ...string) *Frame {
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}
	var keep []string
	for _, c := range f.Columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	out, _ := f.Select(keep...)
	return out
}

// Filter returns the rows for which keep returns true.
func (f *Frame) Filter(keep func(row []string) bool) *Frame {
	out := &Frame{Columns: append([]string(nil), f.Columns...)}
	for _, row := range f.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, append([]string(nil), row...))
		}
	}
	return out
}

// WithColumn appends a column computed per row.
func (f *Frame) WithColumn(name string, compute func(row []string) string) *Frame {
	out := &Frame{Columns: append(append([]string(nil), f.Columns...), name), Rows: make([][]string, len(f.Rows))}
	for i, row := range f.Rows {
		nr := make([]string, len(row), len(row)+1)
		copy(nr, row)
		out.Rows[i] = append(nr, compute(row))
	}
	return out
}

// Split shuffles row order with a seeded generator and cuts off the last
// testRatio share as the test frame.
func (f *Frame) Split(testRatio float64, seed uint64) (train, test *Frame, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio %v out of (0,1)", testRatio)
	}
	n := len(f.Rows)
	nTest := int(math.Ceil(float64(n) * testRatio))
	if nTest == 0 || nTest >= n {
		return nil, nil, fmt.Errorf("cannot split %d rows with test ratio %v", n, testRatio)
	}
	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	train = &Frame{Columns: append([]string(nil), f.Columns...)}
	test = &Frame{Columns: append([]string(nil), f.Columns...)}
	for i, p := range perm {
		row := append([]string(nil), f.Rows[p]...)
		if i < n-nTest {
			train.Rows = append(train.Rows, row)
		} else {
			test.Rows = append(test.Rows, row)
		}
	}
	return train, test, nil
}
