package logistic

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/happyhackingspace/cbm/dataset"
)

// ErrNumerical is returned when a loss evaluates to NaN.
var ErrNumerical = errors.New("logistic: loss is not a number")

// Result summarizes one trainer call.
type Result struct {
	Iterations  int
	InitialLoss float64 // penalized loss before the call
	FinalLoss   float64 // penalized loss after the call
}

// RidgeTrainer refits a model under a Gaussian prior on the coefficients,
// starting from the model's current parameters.
type RidgeTrainer struct {
	PriorVariance float64
	MaxIterations int
	Workers       int
}

// DefaultRidgeTrainer returns the trainer used for mixture refits.
func DefaultRidgeTrainer() RidgeTrainer {
	return RidgeTrainer{
		PriorVariance: 1,
		MaxIterations: 10,
	}
}

// Fit minimizes the penalized loss with L-BFGS. The model is only updated
// when the penalized loss did not increase.
func (t RidgeTrainer) Fit(m *Regression, rows []dataset.SparseVector, targets [][]float64, weights []float64) (Result, error) {
	loss := NewLoss(m, rows, targets, weights)
	loss.Workers = t.Workers
	invVar := 1 / t.PriorVariance
	nf := m.NumFeatures

	f := func(x []float64) float64 {
		v := loss.Value(x)
		for i, w := range x {
			if !isBias(i, nf) {
				v += 0.5 * invVar * w * w
			}
		}
		return v
	}
	grad := func(g, x []float64) {
		loss.Gradient(x, g)
		for i, w := range x {
			if !isBias(i, nf) {
				g[i] += invVar * w
			}
		}
	}

	start := m.Params()
	f0 := f(start)
	if math.IsNaN(f0) {
		return Result{}, ErrNumerical
	}
	settings := &optimize.Settings{
		MajorIterations:   t.MaxIterations,
		GradientThreshold: 1e-8,
	}
	res, err := optimize.Minimize(optimize.Problem{Func: f, Grad: grad}, start, settings, &optimize.LBFGS{Store: 10})
	if err != nil && !linesearchStalled(err) {
		return Result{}, fmt.Errorf("logistic: ridge refit: %w", err)
	}
	if res == nil {
		return Result{}, fmt.Errorf("logistic: ridge refit: no result")
	}
	if err != nil {
		slog.Debug("Ridge refit line search stalled", "error", err, "loss", res.F)
	}
	if math.IsNaN(res.F) {
		return Result{}, ErrNumerical
	}

	out := Result{Iterations: res.Stats.MajorIterations, InitialLoss: f0, FinalLoss: f0}
	if res.F <= f0 {
		m.SetParams(res.X)
		out.FinalLoss = res.F
	}
	return out, nil
}

func linesearchStalled(err error) bool {
	return errors.Is(err, optimize.ErrLinesearcherFailure) ||
		errors.Is(err, optimize.ErrNoProgress) ||
		errors.Is(err, optimize.ErrNonDescentDirection) ||
		errors.Is(err, optimize.ErrLinesearcherBound)
}
