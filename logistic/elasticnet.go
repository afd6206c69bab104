package logistic

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/happyhackingspace/cbm/dataset"
	"github.com/happyhackingspace/cbm/optimization"
)

// ElasticNetTrainer refits a model under an elastic-net penalty with OWL-QN,
// starting from the model's current parameters. The data term is normalized
// by the total instance weight:
//
//	(1/W)·CE + λα‖coef‖₁ + λ(1−α)/2‖coef‖²
type ElasticNetTrainer struct {
	Regularization float64 // λ
	L1Ratio        float64 // α
	LineSearch     bool
	MaxIterations  int
	Epsilon        float64 // pseudo-gradient convergence threshold
	Workers        int
}

// DefaultElasticNetTrainer returns the trainer used for mixture refits.
func DefaultElasticNetTrainer() ElasticNetTrainer {
	return ElasticNetTrainer{
		Regularization: 1,
		L1Ratio:        0,
		LineSearch:     true,
		MaxIterations:  10,
		Epsilon:        1e-6,
	}
}

// Fit runs OWL-QN for at most MaxIterations steps. The model is only updated
// when the objective did not increase.
func (t ElasticNetTrainer) Fit(m *Regression, rows []dataset.SparseVector, targets [][]float64, weights []float64) (Result, error) {
	loss := NewLoss(m, rows, targets, weights)
	loss.Workers = t.Workers
	total := loss.TotalWeight()
	if total <= 0 {
		return Result{}, nil
	}
	scale := 1 / total
	c2 := t.Regularization * (1 - t.L1Ratio)
	n := m.NumParams()
	nf := m.NumFeatures

	l1 := make([]float64, n)
	for i := range l1 {
		if !isBias(i, nf) {
			l1[i] = t.Regularization * t.L1Ratio
		}
	}

	smooth := func(w, grad []float64) float64 {
		v := loss.Gradient(w, grad) * scale
		for i := range grad {
			grad[i] *= scale
			if !isBias(i, nf) {
				v += 0.5 * c2 * w[i] * w[i]
				grad[i] += c2 * w[i]
			}
		}
		return v
	}
	objective := func(w []float64) float64 {
		v := loss.Value(w) * scale
		for i, wi := range w {
			if !isBias(i, nf) {
				v += 0.5*c2*wi*wi + l1[i]*math.Abs(wi)
			}
		}
		return v
	}

	w := m.Params()
	grad := make([]float64, n)
	f := smooth(w, grad) + l1Norm(w, l1)
	if math.IsNaN(f) {
		return Result{}, ErrNumerical
	}
	f0 := f
	pg := pseudoGradient(w, grad, l1)

	term := optimization.NewTerminator(optimization.Minimize)
	term.MaxIterations = t.MaxIterations
	term.MaxStableIterations = 1
	term.AbsoluteEpsilon = 0
	term.RelativeEpsilon = 1e-9

	hist := newCurvature(10)
	newGrad := make([]float64, n)
	for !term.ShouldTerminate() {
		if maxAbs(pg) < t.Epsilon {
			slog.Debug("Elastic-net refit converged", "iteration", term.NumIterations(), "objective", f)
			break
		}

		dir := hist.descent(pg)
		for i := range n {
			if dir[i]*pg[i] > 0 {
				dir[i] = 0
			}
		}

		step := 1.0
		if t.LineSearch {
			step = owlqnLineSearch(w, dir, f, pg, l1, objective)
			if step == 0 {
				slog.Debug("Elastic-net line search failed, stopping", "iteration", term.NumIterations())
				break
			}
		}

		wNew := stepAndProject(w, dir, step, pg, l1)
		fNew := smooth(wNew, newGrad) + l1Norm(wNew, l1)
		if math.IsNaN(fNew) {
			return Result{}, ErrNumerical
		}

		hist.remember(
			floats.SubTo(make([]float64, n), wNew, w),
			floats.SubTo(make([]float64, n), newGrad, grad),
		)

		w = wNew
		grad, newGrad = newGrad, grad
		f = fNew
		pg = pseudoGradient(w, grad, l1)
		term.Add(f)
	}

	out := Result{Iterations: term.NumIterations(), InitialLoss: f0, FinalLoss: f0}
	if f <= f0 {
		m.SetParams(w)
		out.FinalLoss = f
	}
	return out, nil
}

func l1Norm(w, l1 []float64) float64 {
	var s float64
	for i, wi := range w {
		s += l1[i] * math.Abs(wi)
	}
	return s
}

// pseudoGradient is the minimum-norm subgradient of the smooth part plus the L1 term.
func pseudoGradient(w, grad, l1 []float64) []float64 {
	pg := make([]float64, len(w))
	for i := range w {
		c := l1[i]
		switch {
		case w[i] > 0:
			pg[i] = grad[i] + c
		case w[i] < 0:
			pg[i] = grad[i] - c
		case grad[i]+c < 0:
			pg[i] = grad[i] + c
		case grad[i]-c > 0:
			pg[i] = grad[i] - c
		default:
			pg[i] = 0
		}
	}
	return pg
}

// stepAndProject moves along dir and zeroes L1-penalized coordinates that
// leave their orthant.
func stepAndProject(w, dir []float64, step float64, pg, l1 []float64) []float64 {
	out := make([]float64, len(w))
	for i := range w {
		out[i] = w[i] + step*dir[i]
		if l1[i] == 0 {
			continue
		}
		orthant := math.Copysign(1, w[i])
		if w[i] == 0 {
			if pg[i] == 0 {
				out[i] = 0
				continue
			}
			orthant = -math.Copysign(1, pg[i])
		}
		if out[i]*orthant < 0 {
			out[i] = 0
		}
	}
	return out
}

// owlqnLineSearch performs a backtracking line search with orthant projection.
// It returns 0 when no step gives sufficient decrease.
func owlqnLineSearch(w, dir []float64, fVal float64, pg, l1 []float64, objFunc func([]float64) float64) float64 {
	var dirDeriv float64
	for i := range dir {
		dirDeriv += dir[i] * pg[i]
	}
	if dirDeriv >= 0 {
		return 0
	}

	step := 1.0
	c := 1e-4 // Armijo constant
	for trial := 0; trial < 30; trial++ {
		wNew := stepAndProject(w, dir, step, pg, l1)
		var decrease float64
		for i := range w {
			decrease += pg[i] * (wNew[i] - w[i])
		}
		if objFunc(wNew) <= fVal+c*decrease {
			return step
		}
		step *= 0.5
	}
	return 0
}

func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}
