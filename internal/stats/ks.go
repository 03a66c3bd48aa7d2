// Package stats implements the statistical tests and scores the pipeline gates on.
package stats

import (
	"errors"
	"math"
	"slices"
)

var (
	// ErrEmptySample is returned when either sample has no observations.
	ErrEmptySample = errors.New("empty sample")
	// ErrNaN is returned when a sample holds a NaN, which has no rank.
	ErrNaN = errors.New("sample contains NaN")
)

// maxExactN is the largest sample size for which the exact distribution is
// used. Beyond it the lattice walk costs more than the asymptotic error.
const maxExactN = 10_000

// KSResult is the outcome of a two-sample Kolmogorov–Smirnov test.
type KSResult struct {
	Statistic float64
	PValue    float64
	Exact     bool
}

// KSTwoSample runs the two-sided two-sample KS test of H0: a and b are drawn
// from the same continuous distribution.
func KSTwoSample(a, b []float64) (KSResult, error) {
	if len(a) == 0 || len(b) == 0 {
		return KSResult{}, ErrEmptySample
	}
	if slices.ContainsFunc(a, math.IsNaN) || slices.ContainsFunc(b, math.IsNaN) {
		return KSResult{}, ErrNaN
	}
	d := KSStatistic(a, b)
	m, n := len(a), len(b)
	if max(m, n) <= maxExactN {
		return KSResult{Statistic: d, PValue: clamp01(1 - smirnovCDF(d, m, n)), Exact: true}, nil
	}
	return KSResult{Statistic: d, PValue: asymptoticP(d, m, n)}, nil
}

// asymptoticP approximates the one-sample KS survival function at the
// effective size round(mn/(m+n)) with Stephens' finite-n correction of the
// Kolmogorov distribution.
func asymptoticP(d float64, m, n int) float64 {
	en := math.Sqrt(math.Round(float64(m) * float64(n) / float64(m+n)))
	return kolmogorovQ((en + 0.12 + 0.11/en) * d)
}

// KSStatistic is the largest absolute gap between the empirical CDFs of a and b.
// Both samples must be free of NaN.
func KSStatistic(a, b []float64) float64 {
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	n1, n2 := float64(len(x)), float64(len(y))
	var i, j int
	var d float64
	for i < len(x) && j < len(y) {
		v := math.Min(x[i], y[j])
		for i < len(x) && x[i] == v {
			i++
		}
		for j < len(y) && y[j] == v {
			j++
		}
		if gap := math.Abs(float64(i)/n1 - float64(j)/n2); gap > d {
			d = gap
		}
	}
	return d
}

// smirnovCDF returns P(D < d) under H0 for sample sizes m and n by counting
// lattice paths that stay inside the band |i/m - j/n| <= q. u[j] holds the
// path count to (i, j) divided by C(i+n, n), which keeps every value in [0, 1].
func smirnovCDF(d float64, m, n int) float64 {
	if m > n {
		m, n = n, m
	}
	md, nd := float64(m), float64(n)
	q := (0.5 + math.Floor(d*md*nd-1e-7)) / (md * nd)
	u := make([]float64, n+1)
	for j := 0; j <= n; j++ {
		if float64(j)/nd > q {
			u[j] = 0
		} else {
			u[j] = 1
		}
	}
	for i := 1; i <= m; i++ {
		w := float64(i) / float64(i+n)
		if float64(i)/md > q {
			u[0] = 0
		} else {
			u[0] = w * u[0]
		}
		for j := 1; j <= n; j++ {
			if math.Abs(float64(i)/md-float64(j)/nd) > q {
				u[j] = 0
			} else {
				u[j] = w*u[j] + u[j-1]
			}
		}
	}
	return u[n]
}

// kolmogorovQ is the survival function of the Kolmogorov distribution.
func kolmogorovQ(lambda float64) float64 {
	if lambda < 0.2 {
		return 1
	}
	const eps1, eps2 = 1e-6, 1e-16
	a2 := -2 * lambda * lambda
	fac := 2.0
	var sum, prev float64
	for k := 1; k <= 100; k++ {
		term := fac * math.Exp(a2*float64(k*k))
		sum += term
		if math.Abs(term) <= eps1*prev || math.Abs(term) <= eps2*sum {
			return clamp01(sum)
		}
		fac = -fac
		prev = math.Abs(term)
	}
	// Series failed to converge: lambda is tiny and the two samples are indistinguishable.
	return 1
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
