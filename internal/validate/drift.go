package validate

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"txshield/internal/dataset"
	"txshield/internal/stats"
)

// ColumnDrift is one drift report entry.
type ColumnDrift struct {
	PValue        float64 `yaml:"p_value" json:"p_value"`
	DriftDetected bool    `yaml:"drift_detected" json:"drift_detected"`
}

// DriftReport maps column name to its drift entry.
type DriftReport map[string]ColumnDrift

// Drifted lists the flagged columns, sorted.
func (r DriftReport) Drifted() []string {
	var out []string
	for c, d := range r {
		if d.DriftDetected {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

// DetectDrift runs a two-sample KS test on every column present in both
// frames. A column drifts when its p-value is below threshold. ok is true only
// when no column drifted.
func DetectDrift(base, current *dataset.Frame, threshold float64) (ok bool, report DriftReport, err error) {
	report = DriftReport{}
	ok = true
	for _, col := range base.Columns {
		if !current.Has(col) {
			continue
		}
		a, _ := base.Column(col)
		b, _ := current.Column(col)
		p, err := columnPValue(a, b)
		if err != nil {
			return false, nil, fmt.Errorf("drift test %q: %w", col, err)
		}
		drifted := p < threshold
		if drifted {
			ok = false
		}
		report[col] = ColumnDrift{PValue: p, DriftDetected: drifted}
	}
	return ok, report, nil
}

// columnPValue compares two columns of raw cells. Empty cells are left out.
// Columns where every remaining cell is numeric compare as numbers, with NaN
// cells treated as missing; anything else compares by lexical rank, which
// still tests distribution equality.
func columnPValue(a, b []string) (float64, error) {
	a, b = nonEmpty(a), nonEmpty(b)
	x, xok := floats(a)
	y, yok := floats(b)
	if !xok || !yok {
		x, y = lexicalRanks(a, b)
	}
	switch {
	case len(x) == 0 && len(y) == 0:
		return 1, nil
	case len(x) == 0 || len(y) == 0:
		return 0, nil
	}
	res, err := stats.KSTwoSample(x, y)
	if err != nil {
		return 0, err
	}
	return res.PValue, nil
}

func nonEmpty(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

// floats parses every cell, dropping NaN. ok is false if any cell is not a number.
func floats(cells []string) (out []float64, ok bool) {
	out = make([]float64, 0, len(cells))
	for _, c := range cells {
		v, err := dataset.ParseFloat(c)
		if err != nil {
			return nil, false
		}
		if math.IsNaN(v) {
			continue
		}
		out = append(out, v)
	}
	return out, true
}

func lexicalRanks(a, b []string) ([]float64, []float64) {
	uniq := slices.Concat(a, b)
	slices.Sort(uniq)
	uniq = slices.Compact(uniq)
	rank := make(map[string]float64, len(uniq))
	for i, v := range uniq {
		rank[v] = float64(i)
	}
	conv := func(cells []string) []float64 {
		out := make([]float64, len(cells))
		for i, c := range cells {
			out[i] = rank[c]
		}
		return out
	}
	return conv(a), conv(b)
}
