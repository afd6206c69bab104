package cbm

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/happyhackingspace/cbm/internal/mathutil"
	"github.com/happyhackingspace/cbm/internal/parallel"
)

// updateTargets sets T[n][c] ∝ P[n][c]·S[n][c].
func (o *UtilityOptimizer) updateTargets() error {
	return parallel.For(len(o.targets), o.cfg.Workers, o.updateTarget)
}

func (o *UtilityOptimizer) updateTarget(n int) error {
	t, p, s := o.targets[n], o.probabilities[n], o.scores[n]
	var denom float64
	for c := range t {
		t[c] = p[c] * s[c]
		denom += t[c]
	}
	if denom > 0 && !math.IsInf(denom, 0) {
		for c := range t {
			t[c] /= denom
		}
		return nil
	}
	if o.cfg.ZeroUtility != ZeroUtilityUniform {
		return fmt.Errorf("%w: point %d, Σ P·S = %v", ErrZeroExpectedUtility, n, denom)
	}
	slog.Warn("CBM zero expected utility, using uniform targets", "point", n, "denominator", denom)
	uniformTargets(t, s)
	return nil
}

// uniformTargets spreads t uniformly over the entries with a positive
// score, or over all entries if none has one.
func uniformTargets(t, s []float64) {
	positive := 0
	for _, v := range s {
		if v > 0 {
			positive++
		}
	}
	for c := range t {
		switch {
		case positive == 0:
			t[c] = 1 / float64(len(t))
		case s[c] > 0:
			t[c] = 1 / float64(positive)
		default:
			t[c] = 0
		}
	}
}

// updateBinaryTargets marginalizes T into BT[l][n] = (1-m, m) where m is
// the target mass of the combinations containing label l.
func (o *UtilityOptimizer) updateBinaryTargets() {
	L := len(o.binaryTargets)
	parallel.ForEach(len(o.targets), o.cfg.Workers, func(n int) {
		marginals := make([]float64, L)
		for c, y := range o.combinations {
			prob := o.targets[n][c]
			for _, l := range y.MatchedLabels() {
				marginals[l] += prob
			}
		}
		for l, m := range marginals {
			m = mathutil.Clamp01(m)
			o.binaryTargets[l][n][0] = 1 - m
			o.binaryTargets[l][n][1] = m
		}
	})
}

// updateGamma sets G[n] = softmax_k(Σ_c T[n][c]·log p(z=k | y=c, x_n)).
func (o *UtilityOptimizer) updateGamma() {
	K := o.model.NumComponents
	parallel.ForEach(len(o.gammas), o.cfg.Workers, func(n int) {
		bm := o.model.ComputeBM(o.data.Row(n))
		sums := make([]float64, K)
		for c, y := range o.combinations {
			t := o.targets[n][c]
			if t == 0 {
				continue
			}
			for k, lp := range bm.LogPosteriorMembership(y) {
				sums[k] += t * lp
			}
		}
		for k, g := range mathutil.Softmax(sums) {
			o.gammas[n][k] = g
			o.gammasT[k][n] = g
		}
	})
}

// updateProbabilities sets P[n][c] = p(y = c | x_n) under the current model.
func (o *UtilityOptimizer) updateProbabilities() {
	parallel.ForEach(len(o.probabilities), o.cfg.Workers, func(n int) {
		copy(o.probabilities[n], o.model.PredictAssignmentProbs(o.data.Row(n), o.combinations))
	})
}
