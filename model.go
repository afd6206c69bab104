package cbm

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/happyhackingspace/cbm/dataset"
)

// Classifier is a probabilistic multiclass classifier. Binary classifiers
// have two classes: index 0 is "label absent", index 1 "label present".
type Classifier interface {
	Classes() int
	PredictClassProbs(x dataset.SparseVector) []float64
	PredictLogClassProbs(x dataset.SparseVector) []float64
}

// ModelConfig describes the shape of a mixture model.
type ModelConfig struct {
	NumComponents int // K
	NumLabels     int // L
	NumFeatures   int // D
	GatingFamily  Family
	BinaryFamily  Family
	// Seed and InitScale control the random initial parameters that break
	// the symmetry between components. InitScale 0 leaves them at zero.
	Seed      uint64
	InitScale float64
}

// DefaultModelConfig returns a ridge-logistic mixture of the given shape.
func DefaultModelConfig(numComponents, numLabels, numFeatures int) ModelConfig {
	return ModelConfig{
		NumComponents: numComponents,
		NumLabels:     numLabels,
		NumFeatures:   numFeatures,
		GatingFamily:  FamilyRidge,
		BinaryFamily:  FamilyRidge,
		Seed:          1,
		InitScale:     0.1,
	}
}

// Model is a conditional Bernoulli mixture: a gating classifier over K
// components and, per component, L independent binary label classifiers.
type Model struct {
	NumComponents int
	NumLabels     int
	NumFeatures   int
	GatingFamily  Family
	BinaryFamily  Family
	Gating        Classifier
	Binary        [][]Classifier // [component][label]
}

type randomizer interface {
	Randomize(src rand.Source, scale float64)
}

// NewModel builds a mixture with classifiers of the configured families.
func NewModel(cfg ModelConfig) (*Model, error) {
	if cfg.NumComponents < 1 || cfg.NumLabels < 1 || cfg.NumFeatures < 0 {
		return nil, fmt.Errorf("%w: shape K=%d L=%d D=%d", ErrInvalidConfig, cfg.NumComponents, cfg.NumLabels, cfg.NumFeatures)
	}
	if cfg.InitScale < 0 || math.IsNaN(cfg.InitScale) {
		return nil, fmt.Errorf("%w: InitScale must be non-negative, got %v", ErrInvalidConfig, cfg.InitScale)
	}
	gr, err := refitterFor(cfg.GatingFamily)
	if err != nil {
		return nil, err
	}
	br, err := refitterFor(cfg.BinaryFamily)
	if err != nil {
		return nil, err
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed)
	initialize := func(c Classifier) Classifier {
		if r, ok := c.(randomizer); ok && cfg.InitScale > 0 {
			r.Randomize(src, cfg.InitScale)
		}
		return c
	}

	m := &Model{
		NumComponents: cfg.NumComponents,
		NumLabels:     cfg.NumLabels,
		NumFeatures:   cfg.NumFeatures,
		GatingFamily:  cfg.GatingFamily,
		BinaryFamily:  cfg.BinaryFamily,
		Gating:        initialize(gr.newClassifier(cfg.NumComponents, cfg.NumFeatures)),
		Binary:        make([][]Classifier, cfg.NumComponents),
	}
	for k := range m.Binary {
		m.Binary[k] = make([]Classifier, cfg.NumLabels)
		for l := range m.Binary[k] {
			m.Binary[k][l] = initialize(br.newClassifier(2, cfg.NumFeatures))
		}
	}
	return m, nil
}

// ComputeBM returns the Bernoulli mixture the model predicts for x.
func (m *Model) ComputeBM(x dataset.SparseVector) *BMDistribution {
	d := &BMDistribution{
		logProportions: m.Gating.PredictLogClassProbs(x),
		logClassProbs:  make([][][]float64, m.NumComponents),
	}
	for k, row := range m.Binary {
		d.logClassProbs[k] = make([][]float64, len(row))
		for l, clf := range row {
			d.logClassProbs[k][l] = clf.PredictLogClassProbs(x)
		}
	}
	return d
}

// PredictLogComponentProbs returns log π_k(x), the gating distribution.
func (m *Model) PredictLogComponentProbs(x dataset.SparseVector) []float64 {
	return m.Gating.PredictLogClassProbs(x)
}

// PredictAssignmentProbs returns p(y = c | x) for every combination c.
func (m *Model) PredictAssignmentProbs(x dataset.SparseVector, combinations []dataset.MultiLabel) []float64 {
	bm := m.ComputeBM(x)
	probs := make([]float64, len(combinations))
	for c, y := range combinations {
		probs[c] = math.Exp(bm.LogProbability(y))
	}
	return probs
}

// PredictCombination returns the most probable of the given combinations.
func (m *Model) PredictCombination(x dataset.SparseVector, combinations []dataset.MultiLabel) dataset.MultiLabel {
	if len(combinations) == 0 {
		return dataset.NewMultiLabel()
	}
	bm := m.ComputeBM(x)
	best, bestLog := 0, math.Inf(-1)
	for c, y := range combinations {
		if lp := bm.LogProbability(y); lp > bestLog {
			best, bestLog = c, lp
		}
	}
	return combinations[best]
}
