package logistic

import "gonum.org/v1/gonum/floats"

// curvature keeps the most recent (step, gradient change) pairs of a
// quasi-Newton run and applies the implied inverse Hessian with the two-loop
// recursion.
type curvature struct {
	limit int
	pairs []curvaturePair // oldest first
}

type curvaturePair struct {
	s, y []float64
	rho  float64 // 1 / sᵀy
}

func newCurvature(limit int) *curvature {
	return &curvature{limit: limit, pairs: make([]curvaturePair, 0, limit)}
}

// remember stores copies of s and y, evicting the oldest pair when full.
// Pairs with sᵀy <= 0 are ignored.
func (c *curvature) remember(s, y []float64) {
	sy := floats.Dot(s, y)
	if sy <= 0 || c.limit <= 0 {
		return
	}
	p := curvaturePair{rho: 1 / sy}
	if len(c.pairs) == c.limit {
		p.s, p.y = c.pairs[0].s, c.pairs[0].y
		c.pairs = append(c.pairs[:0], c.pairs[1:]...)
	}
	p.s = append(p.s[:0], s...)
	p.y = append(p.y[:0], y...)
	c.pairs = append(c.pairs, p)
}

// descent returns −H·g. With nothing remembered it is −g at unit length.
func (c *curvature) descent(g []float64) []float64 {
	d := append([]float64(nil), g...)
	if len(c.pairs) == 0 {
		if norm := floats.Norm(d, 2); norm > 0 {
			floats.Scale(-1/norm, d)
		}
		return d
	}

	alpha := make([]float64, len(c.pairs))
	for i := len(c.pairs) - 1; i >= 0; i-- {
		p := c.pairs[i]
		alpha[i] = p.rho * floats.Dot(p.s, d)
		floats.AddScaled(d, -alpha[i], p.y)
	}

	// Initial Hessian sᵀy/yᵀy·I from the newest pair.
	newest := c.pairs[len(c.pairs)-1]
	if yy := floats.Dot(newest.y, newest.y); yy > 0 {
		floats.Scale(1/(newest.rho*yy), d)
	}

	for i, p := range c.pairs {
		beta := p.rho * floats.Dot(p.y, d)
		floats.AddScaled(d, alpha[i]-beta, p.s)
	}
	floats.Scale(-1, d)
	return d
}
