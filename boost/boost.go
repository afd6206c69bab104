// Package boost implements LK gradient boosting (Li's multiclass LogitBoost
// variant) over best-first regression trees, trained on soft targets with
// per-instance weights.
package boost

import (
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/happyhackingspace/cbm/dataset"
	"github.com/happyhackingspace/cbm/internal/mathutil"
)

// ErrNumerical is returned when the training loss evaluates to NaN.
var ErrNumerical = errors.New("boost: loss is not a number")

// maxLeafOutput bounds a leaf's Newton step before shrinkage.
const maxLeafOutput = 5.0

// LKBoost is an additive model of per-class regression trees.
type LKBoost struct {
	NumClasses int       `json:"num_classes"`
	Bias       []float64 `json:"bias"`   // [numClasses]
	Rounds     [][]*Tree `json:"rounds"` // [round][numClasses]
}

// New creates a model that predicts the uniform distribution.
func New(numClasses int) *LKBoost {
	return &LKBoost{
		NumClasses: numClasses,
		Bias:       make([]float64, numClasses),
	}
}

// Randomize draws every class bias from N(0, scale²).
func (b *LKBoost) Randomize(src rand.Source, scale float64) {
	normal := distuv.Normal{Mu: 0, Sigma: scale, Src: src}
	for k := range b.Bias {
		b.Bias[k] = normal.Rand()
	}
}

// Scores returns the additive score of every class for x.
func (b *LKBoost) Scores(x dataset.SparseVector) []float64 {
	scores := make([]float64, b.NumClasses)
	copy(scores, b.Bias)
	for _, round := range b.Rounds {
		for k, tree := range round {
			scores[k] += tree.Predict(x)
		}
	}
	return scores
}

// PredictClassProbs returns the class distribution for x.
func (b *LKBoost) PredictClassProbs(x dataset.SparseVector) []float64 {
	return mathutil.Softmax(b.Scores(x))
}

// PredictLogClassProbs returns the log class distribution for x.
func (b *LKBoost) PredictLogClassProbs(x dataset.SparseVector) []float64 {
	return mathutil.LogSoftmax(b.Scores(x))
}

// Classes returns the number of classes.
func (b *LKBoost) Classes() int {
	return b.NumClasses
}

// NumRounds returns the number of boosting rounds fitted so far.
func (b *LKBoost) NumRounds() int {
	return len(b.Rounds)
}

// Result summarizes one trainer call.
type Result struct {
	Iterations  int
	InitialLoss float64 // weighted cross-entropy before the call
	FinalLoss   float64 // weighted cross-entropy after the call
}

// Trainer appends boosting rounds to an existing model.
type Trainer struct {
	Shrinkage  float64
	MaxLeaves  int
	Iterations int
}

// DefaultTrainer returns the trainer used for mixture refits.
func DefaultTrainer() Trainer {
	return Trainer{
		Shrinkage:  0.1,
		MaxLeaves:  2,
		Iterations: 20,
	}
}

// Fit adds Iterations rounds fitted to targets ([N][NumClasses]) with
// per-point weights (nil means unit weights). Points with zero weight do not
// influence the trees.
func (t Trainer) Fit(b *LKBoost, rows []dataset.SparseVector, targets [][]float64, weights []float64) (Result, error) {
	n := len(rows)
	if weights == nil {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1
		}
	}
	var points []int
	for i, w := range weights {
		if w > 0 {
			points = append(points, i)
		}
	}

	scores := make([][]float64, n)
	for i, x := range rows {
		scores[i] = b.Scores(x)
	}
	initial := crossEntropy(scores, targets, weights)
	if math.IsNaN(initial) {
		return Result{}, ErrNumerical
	}
	if len(points) == 0 {
		return Result{InitialLoss: initial, FinalLoss: initial}, nil
	}

	numFeatures := 0
	if n > 0 {
		numFeatures = rows[0].Dim
	}
	builder := newTreeBuilder(rows, numFeatures, max(t.MaxLeaves, 1))
	K := b.NumClasses
	kFactor := float64(K-1) / float64(K)
	resp := make([]float64, n)

	for range t.Iterations {
		probs := make([][]float64, n)
		for _, i := range points {
			probs[i] = mathutil.Softmax(scores[i])
		}
		round := make([]*Tree, K)
		for k := range K {
			for _, i := range points {
				resp[i] = targets[i][k] - probs[i][k]
			}
			// Newton step with the diagonal Hessian p(1-p).
			leafValue := func(idx []int) float64 {
				var num, den float64
				for _, i := range idx {
					p := probs[i][k]
					num += weights[i] * resp[i]
					den += weights[i] * p * (1 - p)
				}
				if den < 1e-12 {
					return 0
				}
				out := kFactor * num / den
				return t.Shrinkage * math.Max(-maxLeafOutput, math.Min(maxLeafOutput, out))
			}
			tree, members := builder.build(points, resp, weights, leafValue)
			for leaf, idx := range members {
				v := tree.Nodes[leaf].Value
				for _, i := range idx {
					scores[i][k] += v
				}
			}
			round[k] = tree
		}
		b.Rounds = append(b.Rounds, round)
	}

	// scores of zero-weight points are stale here; crossEntropy skips them.
	final := crossEntropy(scores, targets, weights)
	if math.IsNaN(final) {
		return Result{}, ErrNumerical
	}
	slog.Debug("Boosting refit", "rounds", t.Iterations, "initial_loss", initial, "final_loss", final)
	return Result{Iterations: t.Iterations, InitialLoss: initial, FinalLoss: final}, nil
}

func crossEntropy(scores, targets [][]float64, weights []float64) float64 {
	var loss float64
	for i, s := range scores {
		if weights[i] == 0 {
			continue
		}
		logp := mathutil.LogSoftmax(s)
		for k, tk := range targets[i] {
			if tk != 0 {
				loss -= weights[i] * tk * logp[k]
			}
		}
	}
	return loss
}
