package stats

import (
	"fmt"
	"math"
)

// Confusion is a binary confusion matrix with 1 as the positive class.
type Confusion struct {
	TP, FP, TN, FN int
}

// NewConfusion tallies predictions against labels. Both slices hold 0/1.
func NewConfusion(yTrue, yPred []int) (Confusion, error) {
	if len(yTrue) != len(yPred) {
		return Confusion{}, fmt.Errorf("label/prediction length mismatch: %d vs %d", len(yTrue), len(yPred))
	}
	var c Confusion
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			c.TP++
		case yTrue[i] == 0 && yPred[i] == 1:
			c.FP++
		case yTrue[i] == 1:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

// Precision is TP/(TP+FP); zero when nothing was predicted positive.
func (c Confusion) Precision() float64 {
	return ratio(c.TP, c.TP+c.FP)
}

// Recall is TP/(TP+FN); zero when there are no positives.
func (c Confusion) Recall() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

// FBeta weights recall beta times as much as precision.
func (c Confusion) FBeta(beta float64) float64 {
	p, r := c.Precision(), c.Recall()
	b2 := beta * beta
	if p == 0 && r == 0 {
		return 0
	}
	return (1 + b2) * p * r / (b2*p + r)
}

// F1 is FBeta(1).
func (c Confusion) F1() float64 { return c.FBeta(1) }

// Threshold turns scores into 0/1 predictions: score >= threshold is positive.
func Threshold(scores []float64, threshold float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		if s >= threshold {
			out[i] = 1
		}
	}
	return out
}

// BestThreshold scans grid and returns the threshold with the highest F-beta.
// Ties keep the lower threshold.
func BestThreshold(yTrue []int, scores []float64, beta float64, grid []float64) (float64, float64, error) {
	best, bestScore := math.NaN(), -1.0
	for _, t := range grid {
		c, err := NewConfusion(yTrue, Threshold(scores, t))
		if err != nil {
			return 0, 0, err
		}
		if s := c.FBeta(beta); s > bestScore {
			best, bestScore = t, s
		}
	}
	if math.IsNaN(best) {
		return 0, 0, fmt.Errorf("empty threshold grid")
	}
	return best, bestScore, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
