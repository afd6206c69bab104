package cbm

import (
	"fmt"

	"github.com/happyhackingspace/cbm/internal/parallel"
)

// updateGatingClassifier fits the gating classifier to the responsibilities.
func (o *UtilityOptimizer) updateGatingClassifier() error {
	r, err := refitterFor(o.model.GatingFamily)
	if err != nil {
		return err
	}
	if err := r.refit(o.cfg, gatingRole, o.model.Gating, o.data.Rows(), o.gammas, nil); err != nil {
		return fmt.Errorf("cbm: refit gating classifier: %w", err)
	}
	return nil
}

// updateBinaryClassifiers fits classifier (k, l) to the label targets BT[l]
// weighted by the responsibilities GT[k].
func (o *UtilityOptimizer) updateBinaryClassifiers() error {
	r, err := refitterFor(o.model.BinaryFamily)
	if err != nil {
		return err
	}
	return o.refitBinary(r)
}

// refitBinary refits every binary classifier with r. Families that cannot be
// trained concurrently are refitted one pair at a time in (k, l) order.
func (o *UtilityOptimizer) refitBinary(r refitter) error {
	L := o.model.NumLabels
	rows := o.data.Rows()
	refit := func(i int) error {
		k, l := i/L, i%L
		if err := r.refit(o.cfg, binaryRole, o.model.Binary[k][l], rows, o.binaryTargets[l], o.gammasT[k]); err != nil {
			return fmt.Errorf("cbm: refit binary classifier (component %d, label %d): %w", k, l, err)
		}
		return nil
	}

	pairs := o.model.NumComponents * L
	if r.concurrent() {
		return parallel.For(pairs, o.cfg.Workers, refit)
	}
	for i := range pairs {
		if err := refit(i); err != nil {
			return err
		}
	}
	return nil
}
