package validate

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"txshield/internal/dataset"
)

// Schema is the declared column set of the raw transaction table. Types are
// carried for documentation only; the validator compares names.
type Schema struct {
	Columns map[string]any `yaml:"columns"`
}

// LoadSchema reads a schema declaration file. A file without a columns key is
// malformed and returns an error.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	node, ok := raw["columns"]
	if !ok {
		return nil, fmt.Errorf("schema %s: missing %q key", path, "columns")
	}
	var s Schema
	if err := node.Decode(&s.Columns); err != nil {
		return nil, fmt.Errorf("schema %s: decode columns: %w", path, err)
	}
	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("schema %s: no columns declared", path)
	}
	return &s, nil
}

// Names returns the declared column names, sorted.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.Columns))
	for n := range s.Columns {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// SchemaDiff lists what separates a frame's columns from the declaration.
type SchemaDiff struct {
	Missing    []string
	Unexpected []string
}

// Empty reports whether the column sets are equal.
func (d SchemaDiff) Empty() bool { return len(d.Missing) == 0 && len(d.Unexpected) == 0 }

// Diff compares frame columns with the declaration, case sensitively.
func (s *Schema) Diff(f *dataset.Frame) SchemaDiff {
	have := make(map[string]bool, len(f.Columns))
	for _, c := range f.Columns {
		have[c] = true
	}
	var d SchemaDiff
	for _, n := range s.Names() {
		if !have[n] {
			d.Missing = append(d.Missing, n)
		}
	}
	for c := range have {
		if _, ok := s.Columns[c]; !ok {
			d.Unexpected = append(d.Unexpected, c)
		}
	}
	slices.Sort(d.Unexpected)
	return d
}

// SchemaValid reports whether the frame's column set equals the declared set
// exactly. Extra, missing, or renamed columns all fail.
func SchemaValid(f *dataset.Frame, s *Schema) bool {
	return s.Diff(f).Empty()
}
