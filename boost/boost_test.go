package boost

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/cbm/dataset"
)

func threshold(n int) ([]dataset.SparseVector, [][]float64) {
	rng := rand.New(rand.NewPCG(5, 6))
	rows := make([]dataset.SparseVector, n)
	targets := make([][]float64, n)
	for i := range n {
		a := rng.Float64()
		rows[i] = dataset.NewSparseVectorFromDense([]float64{a, rng.Float64()})
		rows[i].Dim = 2
		if a > 0.6 {
			targets[i] = []float64{0, 1}
		} else {
			targets[i] = []float64{1, 0}
		}
	}
	return rows, targets
}

func TestTreePredict(t *testing.T) {
	tree := &Tree{Nodes: []Node{
		{Feature: 1, Threshold: 0.5, Left: 1, Right: 2},
		{Left: -1, Right: -1, Value: -1},
		{Left: -1, Right: -1, Value: 2},
	}}
	x := dataset.NewSparseVector(3)
	x.Set(1, 0.7)
	assert.Equal(t, 2.0, tree.Predict(x))
	assert.Equal(t, -1.0, tree.Predict(dataset.NewSparseVector(3)))
	assert.Equal(t, 2, tree.NumLeaves())
}

func TestTreeBuilderRespectsMaxLeaves(t *testing.T) {
	rows, targets := threshold(60)
	resp := make([]float64, len(rows))
	weights := make([]float64, len(rows))
	points := make([]int, len(rows))
	for i := range rows {
		resp[i] = targets[i][1] - 0.5
		weights[i] = 1
		points[i] = i
	}
	for _, leaves := range []int{1, 2, 4} {
		b := newTreeBuilder(rows, 2, leaves)
		tree, members := b.build(points, resp, weights, func(idx []int) float64 { return float64(len(idx)) })
		assert.LessOrEqual(t, tree.NumLeaves(), leaves)
		total := 0
		for _, idx := range members {
			total += len(idx)
		}
		assert.Equal(t, len(rows), total)
	}

	b := newTreeBuilder(rows, 2, 2)
	tree, _ := b.build(points, resp, weights, func([]int) float64 { return 0 })
	require.Len(t, tree.Nodes, 3)
	assert.Equal(t, 0, tree.Nodes[0].Feature, "the informative feature should be split first")
	assert.InDelta(t, 0.6, tree.Nodes[0].Threshold, 0.1)
}

func TestTreeBuilderColumns(t *testing.T) {
	short := dataset.NewSparseVectorFromDense([]float64{0, 7})
	wide := dataset.NewSparseVectorFromDense([]float64{1, 0, 3, 9})
	b := newTreeBuilder([]dataset.SparseVector{short, wide}, 3, 2)

	want := [][]float64{{0, 1}, {7, 0}, {0, 3}}
	assert.Equal(t, want, b.cols)
}

func TestTrainerFitsThreshold(t *testing.T) {
	rows, targets := threshold(100)
	m := New(2)
	trainer := DefaultTrainer()
	trainer.Shrinkage = 0.5
	trainer.Iterations = 30

	res, err := trainer.Fit(m, rows, targets, nil)
	require.NoError(t, err)
	assert.Less(t, res.FinalLoss, res.InitialLoss)
	assert.Equal(t, 30, m.NumRounds())

	correct := 0
	for i, x := range rows {
		p := m.PredictClassProbs(x)
		assert.InDelta(t, 1, p[0]+p[1], 1e-12)
		if (p[1] > 0.5) == (targets[i][1] == 1) {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, 95)
}

func TestTrainerWarmContinuation(t *testing.T) {
	rows, targets := threshold(50)
	m := New(2)
	trainer := DefaultTrainer()
	trainer.Iterations = 5

	first, err := trainer.Fit(m, rows, targets, nil)
	require.NoError(t, err)
	second, err := trainer.Fit(m, rows, targets, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, m.NumRounds())
	assert.InDelta(t, first.FinalLoss, second.InitialLoss, 1e-9)
	assert.Less(t, second.FinalLoss, second.InitialLoss)
}

func TestTrainerSoftTargetsAndZeroWeights(t *testing.T) {
	rows, _ := threshold(40)
	targets := make([][]float64, len(rows))
	weights := make([]float64, len(rows))
	for i := range rows {
		targets[i] = []float64{0.3, 0.7}
		if i%2 == 0 {
			weights[i] = 2
		}
	}
	m := New(2)
	trainer := DefaultTrainer()
	trainer.Shrinkage = 1
	trainer.Iterations = 40
	_, err := trainer.Fit(m, rows, targets, weights)
	require.NoError(t, err)

	p := m.PredictClassProbs(rows[0])
	assert.InDelta(t, 0.7, p[1], 0.05)

	empty := New(2)
	res, err := trainer.Fit(empty, rows, targets, make([]float64, len(rows)))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.NumRounds())
	assert.Equal(t, 0, res.Iterations)
}

func TestRandomize(t *testing.T) {
	m := New(3)
	m.Randomize(rand.NewPCG(1, 1), 0.1)
	lp := m.PredictLogClassProbs(dataset.NewSparseVector(1))
	var sum float64
	for _, v := range lp {
		sum += math.Exp(v)
	}
	assert.InDelta(t, 1, sum, 1e-12)
	assert.NotEqual(t, m.Bias[0], m.Bias[1])
}
