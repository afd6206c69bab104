// Package cbm fits conditional Bernoulli mixtures for multi-label
// classification by maximizing expected utility.
//
// A Model couples a gating classifier over K components with K×L binary
// label classifiers. UtilityOptimizer trains it by coordinate ascent: each
// iteration weights the observed label combinations by a utility Scorer,
// derives soft targets and responsibilities from them and refits every
// classifier in place.
//
//	model, _ := cbm.NewModel(cbm.DefaultModelConfig(4, ds.NumLabels, ds.NumFeatures))
//	opt, _ := cbm.NewUtilityOptimizer(model, ds, scorer.F1{})
//	iterations, _ := opt.Optimize(ctx)
//	fmt.Println(opt.Terminator().LastValue())
package cbm

import (
	"context"

	"github.com/happyhackingspace/cbm/dataset"
	"github.com/happyhackingspace/cbm/internal/parallel"
	"github.com/happyhackingspace/cbm/scorer"
)

// TrainConfig holds configuration for Train.
type TrainConfig struct {
	Model     ModelConfig
	Optimizer Config
	// MaxIterations caps the outer iterations; 0 keeps the terminator default.
	MaxIterations int
}

// DefaultTrainConfig returns the configuration for a K-component mixture
// over data.
func DefaultTrainConfig(numComponents int, data *dataset.DataSet) TrainConfig {
	return TrainConfig{
		Model:     DefaultModelConfig(numComponents, data.NumLabels, data.NumFeatures),
		Optimizer: DefaultConfig(),
	}
}

// Train builds a model and optimizes it on data until convergence.
func Train(ctx context.Context, data *dataset.DataSet, s scorer.Scorer, config TrainConfig) (*UtilityOptimizer, error) {
	if data.NumDataPoints() == 0 {
		return nil, ErrNoData
	}
	model, err := NewModel(config.Model)
	if err != nil {
		return nil, err
	}
	opt, err := NewUtilityOptimizer(model, data, s)
	if err != nil {
		return nil, err
	}
	if err := opt.SetConfig(config.Optimizer); err != nil {
		return nil, err
	}
	if config.MaxIterations > 0 {
		opt.Terminator().MaxIterations = config.MaxIterations
	}
	if _, err := opt.Optimize(ctx); err != nil {
		return nil, err
	}
	return opt, nil
}

// Evaluate predicts the most probable candidate combination for every point
// of data and returns the mean utility against its labels.
func Evaluate(model *Model, data *dataset.DataSet, combinations []dataset.MultiLabel, s scorer.Scorer) float64 {
	n := data.NumDataPoints()
	if n == 0 {
		return 0
	}
	total := parallel.Sum(n, 0, func(i int) float64 {
		pred := model.PredictCombination(data.Row(i), combinations)
		return s.Score(data.NumLabels, data.MultiLabel(i), pred)
	})
	return total / float64(n)
}
