// Package optimization tracks the progress of iterative optimizers.
package optimization

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Goal is the direction an objective is optimized in.
type Goal int

const (
	Minimize Goal = iota
	Maximize
)

// Terminator decides when an iterative procedure should stop. A value counts
// as stable unless it beats the best value so far by more than
// RelativeEpsilon·max(|value|, |best|) + AbsoluteEpsilon. A NaN or infinite
// value restarts the stability test from the next value.
type Terminator struct {
	Goal                Goal
	MaxIterations       int
	MaxStableIterations int
	AbsoluteEpsilon     float64
	RelativeEpsilon     float64

	history  []float64
	converge optimize.FunctionConverge
	primed   bool
	best     float64
	hasBest  bool
	stable   int
	forced   bool
}

// NewTerminator returns a terminator with default tolerances.
func NewTerminator(goal Goal) *Terminator {
	return &Terminator{
		Goal:                goal,
		MaxIterations:       1000,
		MaxStableIterations: 5,
		AbsoluteEpsilon:     1e-4,
		RelativeEpsilon:     1e-4,
	}
}

// Add records the value of the latest iteration.
func (t *Terminator) Add(value float64) {
	t.history = append(t.history, value)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		t.primed = false
		t.stable = 0
		return
	}
	if !t.hasBest || t.better(value, t.best) {
		t.best, t.hasBest = value, true
	}

	if !t.primed {
		t.converge.Init(0)
		t.primed = true
	}
	// One flat step is enough for FunctionConverge to report convergence, so
	// its status tells whether this value was a significant improvement.
	t.converge.Absolute = t.AbsoluteEpsilon
	t.converge.Relative = t.RelativeEpsilon
	t.converge.Iterations = 1
	f := value
	if t.Goal == Maximize {
		f = -value
	}
	if t.converge.Converged(&optimize.Location{F: f}) == optimize.FunctionConvergence {
		t.stable++
	} else {
		t.stable = 0
	}
}

func (t *Terminator) better(a, b float64) bool {
	if t.Goal == Maximize {
		return a > b
	}
	return a < b
}

// ShouldTerminate reports whether the procedure should stop.
func (t *Terminator) ShouldTerminate() bool {
	switch {
	case t.forced:
		return true
	case t.MaxIterations > 0 && len(t.history) >= t.MaxIterations:
		return true
	}
	return t.IsConverged()
}

// IsConverged reports whether the stable-iteration criterion is met.
func (t *Terminator) IsConverged() bool {
	return t.MaxStableIterations > 0 && t.stable >= t.MaxStableIterations
}

// ForceTerminate makes ShouldTerminate report true from now on.
func (t *Terminator) ForceTerminate() {
	t.forced = true
}

// Reset clears the history and the stop state, keeping the settings.
func (t *Terminator) Reset() {
	t.history = nil
	t.primed = false
	t.best, t.hasBest = 0, false
	t.stable = 0
	t.forced = false
}

// History returns the recorded values. The slice must not be modified.
func (t *Terminator) History() []float64 {
	return t.history
}

// NumIterations returns the number of recorded values.
func (t *Terminator) NumIterations() int {
	return len(t.history)
}

// LastValue returns the most recent value, or NaN if none was recorded.
func (t *Terminator) LastValue() float64 {
	if len(t.history) == 0 {
		return math.NaN()
	}
	return t.history[len(t.history)-1]
}

// BestValue returns the best finite value seen, or NaN if there is none.
func (t *Terminator) BestValue() float64 {
	if !t.hasBest {
		return math.NaN()
	}
	return t.best
}

// StableIterations returns the current run of stable iterations.
func (t *Terminator) StableIterations() int {
	return t.stable
}
