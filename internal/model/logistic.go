package model

import (
	"errors"
	"math"
)

// Logistic is an L2-regularized logistic regression on standardized inputs.
// Classes are reweighted to equal total mass, which stands in for oversampling
// the rare fraud class.
type Logistic struct {
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`

	epochs int
	rate   float64
	l2     float64
}

// NewLogistic returns a logistic regression with the default schedule.
func NewLogistic() *Logistic {
	return &Logistic{epochs: 400, rate: 0.5, l2: 1e-3}
}

func (m *Logistic) Kind() string { return KindLogistic }

// Fit runs full-batch gradient descent from zero weights, so results are deterministic.
func (m *Logistic) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("logistic: no rows")
	}
	d := len(X[0])
	m.Mean, m.Scale = standardize(X)
	Z := m.transform(X)

	pos := 0
	for _, v := range y {
		pos += v
	}
	if pos == 0 || pos == len(y) {
		return errors.New("logistic: training labels contain a single class")
	}
	n := float64(len(y))
	wPos, wNeg := n/(2*float64(pos)), n/(2*float64(len(y)-pos))

	m.Weights = make([]float64, d)
	m.Bias = 0
	grad := make([]float64, d)
	for epoch := 0; epoch < m.epochs; epoch++ {
		clear(grad)
		var gb float64
		for i, z := range Z {
			w := wNeg
			if y[i] == 1 {
				w = wPos
			}
			e := w * (sigmoid(dot(m.Weights, z)+m.Bias) - float64(y[i]))
			for j := range grad {
				grad[j] += e * z[j]
			}
			gb += e
		}
		for j := range m.Weights {
			m.Weights[j] -= m.rate * (grad[j]/n + m.l2*m.Weights[j])
		}
		m.Bias -= m.rate * gb / n
	}
	return nil
}

func (m *Logistic) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, z := range m.transform(X) {
		out[i] = sigmoid(dot(m.Weights, z) + m.Bias)
	}
	return out
}

func (m *Logistic) transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		z := make([]float64, len(x))
		for j, v := range x {
			z[j] = (v - m.Mean[j]) / m.Scale[j]
		}
		out[i] = z
	}
	return out
}

func standardize(X [][]float64) (mean, scale []float64) {
	d := len(X[0])
	n := float64(len(X))
	mean = make([]float64, d)
	scale = make([]float64, d)
	for _, x := range X {
		for j, v := range x {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, x := range X {
		for j, v := range x {
			diff := v - mean[j]
			scale[j] += diff * diff
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return mean, scale
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
