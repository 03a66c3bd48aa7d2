// Package model holds the candidate fraud classifiers and their on-disk form.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"txshield/internal/dataset"
)

// Candidate names accepted in trainer settings.
const (
	KindLogistic   = "logistic_regression"
	KindNaiveBayes = "gaussian_nb"
)

// ErrUnknownKind is returned for a candidate name with no implementation.
var ErrUnknownKind = errors.New("unknown model kind")

// Classifier is a binary classifier producing P(y=1|x).
type Classifier interface {
	Kind() string
	Fit(X [][]float64, y []int) error
	PredictProba(X [][]float64) []float64
}

// New returns an untrained classifier of the given kind.
func New(kind string) (Classifier, error) {
	switch kind {
	case KindLogistic:
		return NewLogistic(), nil
	case KindNaiveBayes:
		return &NaiveBayes{}, nil
	}
	return nil, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
}

// Matrix splits a numeric frame into features and 0/1 labels.
func Matrix(f *dataset.Frame, target string) (X [][]float64, y []int, features []string, err error) {
	ti := f.Index(target)
	if ti < 0 {
		return nil, nil, nil, fmt.Errorf("target %q: %w", target, dataset.ErrNoColumn)
	}
	for i, c := range f.Columns {
		if i != ti {
			features = append(features, c)
		}
	}
	X = make([][]float64, len(f.Rows))
	y = make([]int, len(f.Rows))
	for r, row := range f.Rows {
		label, err := dataset.ParseFloat(row[ti])
		if err != nil || (label != 0 && label != 1) {
			return nil, nil, nil, fmt.Errorf("row %d: target %q must be 0 or 1, got %q", r+1, target, row[ti])
		}
		y[r] = int(label)
		x := make([]float64, 0, len(features))
		for i, cell := range row {
			if i == ti {
				continue
			}
			v, err := dataset.ParseFloat(cell)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("row %d column %q: %w", r+1, f.Columns[i], err)
			}
			x = append(x, v)
		}
		X[r] = x
	}
	return X, y, features, nil
}

// Align reorders a frame's feature columns to match a trained model's.
func Align(f *dataset.Frame, features []string, target string) (*dataset.Frame, error) {
	return f.Select(append(slices.Clone(features), target)...)
}

// Saved is the on-disk form of a trained model.
type Saved struct {
	Kind     string          `json:"kind"`
	Features []string        `json:"features"`
	Params   json.RawMessage `json:"params"`
}

// Save writes a fitted classifier with its feature order.
func Save(path string, c Classifier, features []string) error {
	params, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", c.Kind(), err)
	}
	raw, err := json.MarshalIndent(Saved{Kind: c.Kind(), Features: features, Params: params}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(path string) (Classifier, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read model: %w", err)
	}
	var s Saved
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, nil, fmt.Errorf("parse model: %w", err)
	}
	c, err := New(s.Kind)
	if err != nil {
		return nil, nil, err
	}
	if err := json.Unmarshal(s.Params, c); err != nil {
		return nil, nil, fmt.Errorf("parse %s params: %w", s.Kind, err)
	}
	return c, s.Features, nil
}
