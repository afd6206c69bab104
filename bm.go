package cbm

import (
	"gonum.org/v1/gonum/floats"

	"github.com/happyhackingspace/cbm/dataset"
	"github.com/happyhackingspace/cbm/internal/mathutil"
)

// BMDistribution is a Bernoulli mixture over label sets for one input:
// p(y) = Σ_k π_k Π_l p_kl(y_l).
type BMDistribution struct {
	logProportions []float64     // [K]
	logClassProbs  [][][]float64 // [K][L][2]
}

// NumComponents returns K.
func (d *BMDistribution) NumComponents() int {
	return len(d.logProportions)
}

func (d *BMDistribution) logJoint(y dataset.MultiLabel) []float64 {
	joint := make([]float64, len(d.logProportions))
	for k, lp := range d.logProportions {
		s := lp
		for l, probs := range d.logClassProbs[k] {
			if y.Matches(l) {
				s += probs[1]
			} else {
				s += probs[0]
			}
		}
		joint[k] = s
	}
	return joint
}

// LogProbability returns log p(y).
func (d *BMDistribution) LogProbability(y dataset.MultiLabel) float64 {
	return floats.LogSumExp(d.logJoint(y))
}

// LogPosteriorMembership returns log p(z = k | y) for every component k.
// When y has zero probability under every component the posterior is uniform.
func (d *BMDistribution) LogPosteriorMembership(y dataset.MultiLabel) []float64 {
	return mathutil.LogSoftmax(d.logJoint(y))
}
