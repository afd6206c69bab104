package logistic

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestCurvatureWithoutPairsIsUnitSteepestDescent(t *testing.T) {
	c := newCurvature(3)
	d := c.descent([]float64{3, -4})
	want := []float64{-0.6, 0.8}
	if !floats.EqualApprox(d, want, 1e-12) {
		t.Errorf("descent = %v, want %v", d, want)
	}
}

func TestCurvatureRecoversDiagonalInverseHessian(t *testing.T) {
	// f(x) = x₀² + 4x₁², Hessian diag(2, 8).
	c := newCurvature(5)
	c.remember([]float64{1, 0}, []float64{2, 0})
	c.remember([]float64{0, 1}, []float64{0, 8})

	d := c.descent([]float64{2, 8})
	want := []float64{-1, -1}
	if !floats.EqualApprox(d, want, 1e-12) {
		t.Errorf("descent = %v, want %v", d, want)
	}
}

func TestCurvatureSkipsNonPositivePairsAndEvictsOldest(t *testing.T) {
	c := newCurvature(2)
	c.remember([]float64{1, 0}, []float64{-1, 0})
	if len(c.pairs) != 0 {
		t.Fatalf("pairs = %d, want a negative-curvature pair ignored", len(c.pairs))
	}

	s := []float64{1, 1}
	c.remember(s, []float64{1, 1})
	c.remember([]float64{2, 0}, []float64{1, 0})
	c.remember([]float64{0, 3}, []float64{0, 1})
	if len(c.pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(c.pairs))
	}
	if got := c.pairs[0].s; !floats.Equal(got, []float64{2, 0}) {
		t.Errorf("oldest kept s = %v, want [2 0]", got)
	}
	if got := c.pairs[1].rho; math.Abs(got-1.0/3) > 1e-15 {
		t.Errorf("newest rho = %v, want 1/3", got)
	}

	s[0] = 99
	for _, p := range c.pairs {
		if p.s[0] == 99 {
			t.Errorf("pair aliases the caller's slice: %v", p.s)
		}
	}
}
