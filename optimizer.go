package cbm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/happyhackingspace/cbm/dataset"
	"github.com/happyhackingspace/cbm/internal/mathutil"
	"github.com/happyhackingspace/cbm/internal/parallel"
	"github.com/happyhackingspace/cbm/optimization"
	"github.com/happyhackingspace/cbm/scorer"
)

// UtilityOptimizer fits a Model by coordinate ascent on the negative log
// expected utility. Every iteration turns the current combination
// probabilities into utility-weighted targets, derives per-label targets and
// component responsibilities from them, refits all classifiers in place and
// refreshes the probabilities.
//
// The optimizer is not safe for concurrent use.
type UtilityOptimizer struct {
	model        *Model
	data         *dataset.DataSet
	combinations []dataset.MultiLabel
	terminator   *optimization.Terminator
	cfg          Config

	scores        [][]float64   // S[N][C], fixed
	probabilities [][]float64   // P[N][C]
	targets       [][]float64   // T[N][C]
	binaryTargets [][][]float64 // BT[L][N][2]
	gammas        [][]float64   // G[N][K]
	gammasT       [][]float64   // GT[K][N]
}

// NewUtilityOptimizer scores every distinct combination of data against
// every point's labels and computes the model's initial combination
// probabilities. The scorer must be safe for concurrent use.
func NewUtilityOptimizer(model *Model, data *dataset.DataSet, s scorer.Scorer) (*UtilityOptimizer, error) {
	if model.NumLabels != data.NumLabels || model.NumFeatures != data.NumFeatures {
		return nil, fmt.Errorf("%w: model L=%d D=%d, data L=%d D=%d",
			ErrShapeMismatch, model.NumLabels, model.NumFeatures, data.NumLabels, data.NumFeatures)
	}
	N, K, L := data.NumDataPoints(), model.NumComponents, model.NumLabels
	o := &UtilityOptimizer{
		model:        model,
		data:         data,
		combinations: dataset.GatherMultiLabels(data),
		terminator:   optimization.NewTerminator(optimization.Minimize),
		cfg:          DefaultConfig(),
	}
	C := len(o.combinations)

	o.scores = matrix(N, C)
	o.probabilities = matrix(N, C)
	o.targets = matrix(N, C)
	o.gammas = matrix(N, K)
	o.gammasT = matrix(K, N)
	o.binaryTargets = make([][][]float64, L)
	for l := range o.binaryTargets {
		o.binaryTargets[l] = matrix(N, 2)
	}

	err := parallel.For(N, o.cfg.Workers, func(n int) error {
		truth := data.MultiLabel(n)
		for c, y := range o.combinations {
			v := s.Score(L, truth, y)
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: point %d, combination %v: %v", ErrInvalidScore, n, y, v)
			}
			o.scores[n][c] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.updateProbabilities()
	slog.Debug("CBM optimizer ready", "points", N, "combinations", C, "components", K, "labels", L)
	return o, nil
}

func matrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// Config returns the current configuration.
func (o *UtilityOptimizer) Config() Config {
	return o.cfg
}

// SetConfig replaces the configuration; it takes effect with the next iteration.
func (o *UtilityOptimizer) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// Iterate runs one full E-step, M-step and probability refresh and records
// the resulting objective with the terminator.
func (o *UtilityOptimizer) Iterate() error {
	start := time.Now()

	var err error
	if timed("update targets", func() { err = o.updateTargets() }); err != nil {
		return err
	}
	timed("update binary targets", o.updateBinaryTargets)
	timed("update gamma", o.updateGamma)
	if timed("refit gating classifier", func() { err = o.updateGatingClassifier() }); err != nil {
		return err
	}
	if timed("refit binary classifiers", func() { err = o.updateBinaryClassifiers() }); err != nil {
		return err
	}
	timed("update probabilities", o.updateProbabilities)

	objective, err := o.Objective()
	if err != nil {
		return err
	}
	o.terminator.Add(objective)
	slog.Debug("CBM iteration", "iteration", o.terminator.NumIterations(), "objective", objective,
		"duration", time.Since(start))
	return nil
}

func timed(name string, fn func()) {
	start := time.Now()
	fn()
	slog.Debug("CBM "+name, "duration", time.Since(start))
}

// Optimize iterates until the terminator says stop and returns the number
// of iterations run by this call. The context is only checked between
// iterations.
func (o *UtilityOptimizer) Optimize(ctx context.Context) (int, error) {
	return runUntil(ctx, o.terminator, o.Iterate)
}

func runUntil(ctx context.Context, term *optimization.Terminator, iterate func() error) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := iterate(); err != nil {
			return n, err
		}
		n++
		if term.ShouldTerminate() {
			return n, nil
		}
	}
}

// Gammas returns the responsibilities G[N][K] of the last iteration.
func (o *UtilityOptimizer) Gammas() [][]float64 { return o.gammas }

// PIs returns the gating distribution Π[N][K] under the current model.
func (o *UtilityOptimizer) PIs() [][]float64 {
	pis := make([][]float64, o.data.NumDataPoints())
	parallel.ForEach(len(pis), o.cfg.Workers, func(n int) {
		lp := o.model.PredictLogComponentProbs(o.data.Row(n))
		for k := range lp {
			lp[k] = math.Exp(lp[k])
		}
		pis[n] = lp
	})
	return pis
}

// Terminator returns the convergence monitor. Its tolerances may be changed
// before calling Optimize.
func (o *UtilityOptimizer) Terminator() *optimization.Terminator { return o.terminator }

// Model returns the model being fitted.
func (o *UtilityOptimizer) Model() *Model { return o.model }

// Targets returns T[N][C].
func (o *UtilityOptimizer) Targets() [][]float64 { return o.targets }

// BinaryTargets returns BT[L][N][2] as (P(absent), P(present)) pairs.
func (o *UtilityOptimizer) BinaryTargets() [][][]float64 { return o.binaryTargets }

// Probabilities returns P[N][C].
func (o *UtilityOptimizer) Probabilities() [][]float64 { return o.probabilities }

// Scores returns S[N][C].
func (o *UtilityOptimizer) Scores() [][]float64 { return o.scores }

// Combinations returns the candidate label sets in column order.
func (o *UtilityOptimizer) Combinations() []dataset.MultiLabel { return o.combinations }

// GammaEntropy returns Σ_n H(G[n]), a measure of how undecided the
// responsibilities are.
func (o *UtilityOptimizer) GammaEntropy() float64 {
	return parallel.Sum(len(o.gammas), o.cfg.Workers, func(n int) float64 {
		return mathutil.Entropy(o.gammas[n])
	})
}
