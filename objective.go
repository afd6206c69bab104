package cbm

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/cbm/internal/parallel"
)

// Objective returns Σ_n -log(Σ_c P[n][c]·S[n][c]) plus the regularization
// penalty of every classifier under the current configuration. It does not
// record the value with the terminator.
func (o *UtilityOptimizer) Objective() (float64, error) {
	data := parallel.Sum(len(o.probabilities), o.cfg.Workers, func(n int) float64 {
		var expected float64
		for c, p := range o.probabilities[n] {
			expected += p * o.scores[n][c]
		}
		return -math.Log(expected)
	})
	penalty, err := o.penalty()
	if err != nil {
		return 0, err
	}
	return data + penalty, nil
}

func (o *UtilityOptimizer) penalty() (float64, error) {
	gr, err := refitterFor(o.model.GatingFamily)
	if err != nil {
		return 0, err
	}
	br, err := refitterFor(o.model.BinaryFamily)
	if err != nil {
		return 0, err
	}
	total, err := gr.penalty(o.cfg, gatingRole, o.model.Gating)
	if err != nil {
		return 0, fmt.Errorf("cbm: gating penalty: %w", err)
	}
	for k, row := range o.model.Binary {
		for l, clf := range row {
			p, err := br.penalty(o.cfg, binaryRole, clf)
			if err != nil {
				return 0, fmt.Errorf("cbm: binary penalty (component %d, label %d): %w", k, l, err)
			}
			total += p
		}
	}
	return total, nil
}
