package model

import (
	"errors"
	"math"
)

// NaiveBayes is a gaussian naive Bayes classifier over two classes.
type NaiveBayes struct {
	Prior [2]float64   `json:"prior"`
	Mean  [2][]float64 `json:"mean"`
	Var   [2][]float64 `json:"var"`
}

func (m *NaiveBayes) Kind() string { return KindNaiveBayes }

func (m *NaiveBayes) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("naive bayes: no rows")
	}
	d := len(X[0])
	var count [2]float64
	for c := 0; c < 2; c++ {
		m.Mean[c] = make([]float64, d)
		m.Var[c] = make([]float64, d)
	}
	for i, x := range X {
		c := y[i]
		count[c]++
		for j, v := range x {
			m.Mean[c][j] += v
		}
	}
	if count[0] == 0 || count[1] == 0 {
		return errors.New("naive bayes: training labels contain a single class")
	}
	for c := 0; c < 2; c++ {
		for j := range m.Mean[c] {
			m.Mean[c][j] /= count[c]
		}
	}
	maxVar := 0.0
	for i, x := range X {
		c := y[i]
		for j, v := range x {
			diff := v - m.Mean[c][j]
			m.Var[c][j] += diff * diff
		}
	}
	for c := 0; c < 2; c++ {
		for j := range m.Var[c] {
			m.Var[c][j] /= count[c]
			maxVar = math.Max(maxVar, m.Var[c][j])
		}
	}
	// Variance smoothing keeps constant features from producing zero variance.
	eps := 1e-9 * math.Max(maxVar, 1)
	for c := 0; c < 2; c++ {
		for j := range m.Var[c] {
			m.Var[c][j] += eps
		}
	}
	total := count[0] + count[1]
	m.Prior = [2]float64{count[0] / total, count[1] / total}
	return nil
}

func (m *NaiveBayes) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		var ll [2]float64
		for c := 0; c < 2; c++ {
			ll[c] = math.Log(m.Prior[c])
			for j, v := range x {
				diff := v - m.Mean[c][j]
				ll[c] -= 0.5*math.Log(2*math.Pi*m.Var[c][j]) + diff*diff/(2*m.Var[c][j])
			}
		}
		out[i] = sigmoid(ll[1] - ll[0])
	}
	return out
}
