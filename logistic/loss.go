package logistic

import (
	"math"

	"github.com/happyhackingspace/cbm/dataset"
	"github.com/happyhackingspace/cbm/internal/mathutil"
	"github.com/happyhackingspace/cbm/internal/parallel"
)

// Loss is the weighted soft-target cross-entropy
//
//	Σ_n w_n Σ_k t_nk · (−log p_nk)
//
// over a flat parameter vector laid out as in Regression.Params.
type Loss struct {
	NumClasses  int
	NumFeatures int
	Rows        []dataset.SparseVector
	Targets     [][]float64 // [N][NumClasses]
	Weights     []float64   // [N]; nil means unit weights
	Workers     int
}

// NewLoss builds the loss of m on the given data.
func NewLoss(m *Regression, rows []dataset.SparseVector, targets [][]float64, weights []float64) *Loss {
	return &Loss{
		NumClasses:  m.NumClasses,
		NumFeatures: m.NumFeatures,
		Rows:        rows,
		Targets:     targets,
		Weights:     weights,
	}
}

func (l *Loss) weight(n int) float64 {
	if l.Weights == nil {
		return 1
	}
	return l.Weights[n]
}

// TotalWeight returns Σ_n w_n.
func (l *Loss) TotalWeight() float64 {
	if l.Weights == nil {
		return float64(len(l.Rows))
	}
	var s float64
	for _, w := range l.Weights {
		s += w
	}
	return s
}

func (l *Loss) logProbs(params []float64, x dataset.SparseVector) []float64 {
	stride := l.NumFeatures + 1
	logits := make([]float64, l.NumClasses)
	for k := range l.NumClasses {
		offset := k * stride
		logits[k] = x.Dot(params[offset:offset+l.NumFeatures]) + params[offset+l.NumFeatures]
	}
	return mathutil.LogSoftmax(logits)
}

// pointLoss skips zero targets so that a zero-probability class with no
// target mass costs nothing.
func (l *Loss) pointLoss(n int, logp []float64) float64 {
	w := l.weight(n)
	if w == 0 {
		return 0
	}
	var s float64
	for k, t := range l.Targets[n] {
		if t != 0 {
			s -= t * logp[k]
		}
	}
	return w * s
}

// Value returns the loss at params.
func (l *Loss) Value(params []float64) float64 {
	return parallel.Sum(len(l.Rows), l.Workers, func(n int) float64 {
		return l.pointLoss(n, l.logProbs(params, l.Rows[n]))
	})
}

// Gradient writes the gradient at params into grad and returns the loss value.
func (l *Loss) Gradient(params, grad []float64) float64 {
	nb := min(parallel.Workers(l.Workers), len(l.Rows))
	if nb == 0 {
		clear(grad)
		return 0
	}
	partGrad := make([][]float64, nb)
	partLoss := make([]float64, nb)
	stride := l.NumFeatures + 1
	parallel.ForEach(nb, nb, func(b int) {
		g := make([]float64, len(grad))
		var loss float64
		lo, hi := b*len(l.Rows)/nb, (b+1)*len(l.Rows)/nb
		for n := lo; n < hi; n++ {
			w := l.weight(n)
			if w == 0 {
				continue
			}
			x := l.Rows[n]
			logp := l.logProbs(params, x)
			loss += l.pointLoss(n, logp)
			var mass float64
			for _, t := range l.Targets[n] {
				mass += t
			}
			for k := range l.NumClasses {
				diff := w * (math.Exp(logp[k])*mass - l.Targets[n][k])
				offset := k * stride
				for i, idx := range x.Indices {
					if idx < l.NumFeatures {
						g[offset+idx] += diff * x.Values[i]
					}
				}
				g[offset+l.NumFeatures] += diff
			}
		}
		partGrad[b] = g
		partLoss[b] = loss
	})
	clear(grad)
	var total float64
	for b := range nb {
		total += partLoss[b]
		for i, v := range partGrad[b] {
			grad[i] += v
		}
	}
	return total
}

// isBias reports whether flat index i is an intercept.
func isBias(i, numFeatures int) bool {
	return i%(numFeatures+1) == numFeatures
}

// RidgePenalty returns Σ coef² / (2σ²); intercepts are not penalized.
func RidgePenalty(m *Regression, priorVariance float64) float64 {
	var s float64
	for _, row := range m.Coef {
		for _, w := range row {
			s += w * w
		}
	}
	return s / (2 * priorVariance)
}

// ElasticNetPenalty returns λ(α‖coef‖₁ + (1−α)/2‖coef‖²); intercepts are not penalized.
func ElasticNetPenalty(m *Regression, regularization, l1Ratio float64) float64 {
	var l1, l2 float64
	for _, row := range m.Coef {
		for _, w := range row {
			l1 += math.Abs(w)
			l2 += w * w
		}
	}
	return regularization * (l1Ratio*l1 + (1-l1Ratio)/2*l2)
}
