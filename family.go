package cbm

import (
	"fmt"

	"github.com/happyhackingspace/cbm/boost"
	"github.com/happyhackingspace/cbm/dataset"
	"github.com/happyhackingspace/cbm/internal/parallel"
	"github.com/happyhackingspace/cbm/logistic"
)

// Family selects the classifier type of the gating or binary classifiers and
// the training strategy used to refit them.
type Family int

const (
	FamilyRidge      Family = iota // ridge-regularized logistic regression, "lr"
	FamilyBoost                    // LK gradient-boosted trees, "boost"
	FamilyElasticNet               // elastic-net logistic regression, "elasticnet"
)

func (f Family) String() string {
	switch f {
	case FamilyRidge:
		return "lr"
	case FamilyBoost:
		return "boost"
	case FamilyElasticNet:
		return "elasticnet"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily maps "lr", "boost" and "elasticnet" to a Family.
func ParseFamily(s string) (Family, error) {
	switch s {
	case "lr":
		return FamilyRidge, nil
	case "boost":
		return FamilyBoost, nil
	case "elasticnet":
		return FamilyElasticNet, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, s)
}

// role tells a refitter which half of the configuration applies.
type role int

const (
	gatingRole role = iota
	binaryRole
)

// refitter is the training strategy bound to a Family.
type refitter interface {
	newClassifier(numClasses, numFeatures int) Classifier
	refit(cfg Config, r role, clf Classifier, rows []dataset.SparseVector, targets [][]float64, weights []float64) error
	penalty(cfg Config, r role, clf Classifier) (float64, error)
	// concurrent reports whether refits of distinct classifiers may run at the same time.
	concurrent() bool
}

func refitterFor(f Family) (refitter, error) {
	switch f {
	case FamilyRidge:
		return ridgeRefitter{}, nil
	case FamilyBoost:
		return boostRefitter{}, nil
	case FamilyElasticNet:
		return elasticNetRefitter{}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownFamily, f)
}

// refitWorkers gives the gating refit the whole pool; binary refits are
// already spread across the pool one classifier per worker.
func refitWorkers(cfg Config, r role) int {
	if r == gatingRole {
		return parallel.Workers(cfg.Workers)
	}
	return 1
}

func asRegression(f Family, clf Classifier) (*logistic.Regression, error) {
	lr, ok := clf.(*logistic.Regression)
	if !ok {
		return nil, fmt.Errorf("%w: %v needs *logistic.Regression, got %T", ErrClassifierMismatch, f, clf)
	}
	return lr, nil
}

type ridgeRefitter struct{}

func (ridgeRefitter) newClassifier(numClasses, numFeatures int) Classifier {
	return logistic.New(numClasses, numFeatures)
}

func (ridgeRefitter) refit(cfg Config, r role, clf Classifier, rows []dataset.SparseVector, targets [][]float64, weights []float64) error {
	lr, err := asRegression(FamilyRidge, clf)
	if err != nil {
		return err
	}
	trainer := logistic.RidgeTrainer{
		PriorVariance: cfg.priorVariance(r),
		MaxIterations: cfg.MaxRefitIterations,
		Workers:       refitWorkers(cfg, r),
	}
	_, err = trainer.Fit(lr, rows, targets, weights)
	return err
}

func (ridgeRefitter) penalty(cfg Config, r role, clf Classifier) (float64, error) {
	lr, err := asRegression(FamilyRidge, clf)
	if err != nil {
		return 0, err
	}
	return logistic.RidgePenalty(lr, cfg.priorVariance(r)), nil
}

func (ridgeRefitter) concurrent() bool { return true }

type elasticNetRefitter struct{}

func (elasticNetRefitter) newClassifier(numClasses, numFeatures int) Classifier {
	return logistic.New(numClasses, numFeatures)
}

func (elasticNetRefitter) refit(cfg Config, r role, clf Classifier, rows []dataset.SparseVector, targets [][]float64, weights []float64) error {
	lr, err := asRegression(FamilyElasticNet, clf)
	if err != nil {
		return err
	}
	trainer := logistic.DefaultElasticNetTrainer()
	trainer.Regularization = cfg.regularization(r)
	trainer.L1Ratio = cfg.l1Ratio(r)
	trainer.LineSearch = cfg.LineSearch
	trainer.MaxIterations = cfg.MaxRefitIterations
	trainer.Workers = refitWorkers(cfg, r)
	_, err = trainer.Fit(lr, rows, targets, weights)
	return err
}

func (elasticNetRefitter) penalty(cfg Config, r role, clf Classifier) (float64, error) {
	lr, err := asRegression(FamilyElasticNet, clf)
	if err != nil {
		return 0, err
	}
	return logistic.ElasticNetPenalty(lr, cfg.regularization(r), cfg.l1Ratio(r)), nil
}

func (elasticNetRefitter) concurrent() bool { return true }

// boostRefitter trains serially: rounds are appended to the model in place
// and the refit order changes the result.
type boostRefitter struct{}

func (boostRefitter) newClassifier(numClasses, _ int) Classifier {
	return boost.New(numClasses)
}

func (boostRefitter) refit(cfg Config, r role, clf Classifier, rows []dataset.SparseVector, targets [][]float64, weights []float64) error {
	b, ok := clf.(*boost.LKBoost)
	if !ok {
		return fmt.Errorf("%w: %v needs *boost.LKBoost, got %T", ErrClassifierMismatch, FamilyBoost, clf)
	}
	trainer := boost.Trainer{
		Shrinkage:  cfg.shrinkage(r),
		MaxLeaves:  cfg.numLeaves(r),
		Iterations: cfg.numIterations(r),
	}
	_, err := trainer.Fit(b, rows, targets, weights)
	return err
}

func (boostRefitter) penalty(Config, role, Classifier) (float64, error) {
	return 0, nil
}

func (boostRefitter) concurrent() bool { return false }
