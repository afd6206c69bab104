package cbm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/cbm/dataset"
	"github.com/happyhackingspace/cbm/optimization"
	"github.com/happyhackingspace/cbm/scorer"
)

// twoLabels builds a data set with label 0 iff x0 > 0 and label 1 iff
// x1 > 0, every feature at least 0.5 away from the boundary.
func twoLabels(t *testing.T, n int) *dataset.DataSet {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 8))
	ds := dataset.New(2, 2)
	for range n {
		x := make([]float64, 2)
		var labels []int
		for d := range x {
			x[d] = 0.5 + 0.5*rng.Float64()
			if rng.IntN(2) == 0 {
				x[d] = -x[d]
			} else {
				labels = append(labels, d)
			}
		}
		require.NoError(t, ds.Add(dataset.NewSparseVectorFromDense(x), dataset.NewMultiLabel(labels...)))
	}
	return ds
}

func newOptimizer(t *testing.T, ds *dataset.DataSet, cfg ModelConfig, s scorer.Scorer) *UtilityOptimizer {
	t.Helper()
	m, err := NewModel(cfg)
	require.NoError(t, err)
	o, err := NewUtilityOptimizer(m, ds, s)
	require.NoError(t, err)
	return o
}

func checkInvariants(t *testing.T, o *UtilityOptimizer) {
	t.Helper()
	for n, row := range o.Targets() {
		var sum float64
		for _, v := range row {
			sum += v
		}
		assert.InDelta(t, 1, sum, 1e-9, "targets of point %d", n)
	}
	for n, row := range o.Gammas() {
		var sum float64
		for _, v := range row {
			sum += v
		}
		assert.InDelta(t, 1, sum, 1e-9, "gammas of point %d", n)
	}
	for l, bt := range o.BinaryTargets() {
		for n, pair := range bt {
			assert.InDelta(t, 1, pair[0]+pair[1], 1e-12, "binary targets of label %d, point %d", l, n)
			for _, v := range pair {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
}

func TestScoreTable(t *testing.T) {
	ds := twoLabels(t, 30)
	o := newOptimizer(t, ds, DefaultModelConfig(2, 2, 2), scorer.Accuracy{})
	combos := o.Combinations()
	assert.Equal(t, dataset.GatherMultiLabels(ds), combos)
	for n, row := range o.Scores() {
		require.Len(t, row, len(combos))
		for c, s := range row {
			want := 0.0
			if combos[c].Equal(ds.MultiLabel(n)) {
				want = 1
			}
			assert.Equal(t, want, s)
		}
	}
	for _, row := range o.Probabilities() {
		for _, p := range row {
			assert.Greater(t, p, 0.0, "probabilities are computed on construction")
		}
	}
}

func TestNewUtilityOptimizerErrors(t *testing.T) {
	ds := twoLabels(t, 10)
	m, err := NewModel(DefaultModelConfig(2, 3, 2))
	require.NoError(t, err)
	_, err = NewUtilityOptimizer(m, ds, scorer.F1{})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	m, err = NewModel(DefaultModelConfig(2, 2, 2))
	require.NoError(t, err)
	negative := scorer.Func(func(int, dataset.MultiLabel, dataset.MultiLabel) float64 { return -1 })
	_, err = NewUtilityOptimizer(m, ds, negative)
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestIterateKeepsDistributionsNormalized(t *testing.T) {
	ds := twoLabels(t, 40)
	o := newOptimizer(t, ds, DefaultModelConfig(3, 2, 2), scorer.F1{})
	for range 3 {
		require.NoError(t, o.Iterate())
		checkInvariants(t, o)
	}
	assert.Equal(t, 3, o.Terminator().NumIterations())

	for _, row := range o.PIs() {
		var sum float64
		for _, v := range row {
			sum += v
		}
		assert.InDelta(t, 1, sum, 1e-9)
	}
	h := o.GammaEntropy()
	assert.GreaterOrEqual(t, h, 0.0)
	assert.LessOrEqual(t, h, float64(ds.NumDataPoints())*math.Log(3)+1e-9)
}

func TestRidgeObjectiveNonIncreasing(t *testing.T) {
	ds := twoLabels(t, 50)
	cfg := DefaultModelConfig(1, 2, 2)
	cfg.InitScale = 0.5
	o := newOptimizer(t, ds, cfg, scorer.F1{})
	term := o.Terminator()
	term.MaxIterations = 8
	term.MaxStableIterations = 100

	n, err := o.Optimize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	history := term.History()
	require.Len(t, history, 8)
	for i := 1; i < len(history); i++ {
		assert.LessOrEqual(t, history[i], history[i-1]+1e-9*math.Abs(history[i-1]),
			"objective increased at iteration %d: %v -> %v", i, history[i-1], history[i])
	}
}

func TestDegenerateSingleComponentSingleLabel(t *testing.T) {
	ds := dataset.New(1, 1)
	for i := range 6 {
		x := dataset.NewSparseVectorFromDense([]float64{float64(i) - 2.5})
		require.NoError(t, ds.Add(x, dataset.NewMultiLabel(0)))
	}
	one := scorer.Func(func(int, dataset.MultiLabel, dataset.MultiLabel) float64 { return 1 })
	o := newOptimizer(t, ds, DefaultModelConfig(1, 1, 1), one)
	require.NoError(t, o.Iterate())

	want := make([][]float64, ds.NumDataPoints())
	gammas := make([][]float64, ds.NumDataPoints())
	for n := range want {
		want[n] = []float64{0, 1}
		gammas[n] = []float64{1}
	}
	if diff := cmp.Diff(gammas, o.Gammas()); diff != "" {
		t.Errorf("gammas mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, o.BinaryTargets()[0]); diff != "" {
		t.Errorf("binary targets mismatch (-want +got):\n%s", diff)
	}
}

func TestIndicatorScoresConcentrateTargets(t *testing.T) {
	ds := twoLabels(t, 30)
	o := newOptimizer(t, ds, DefaultModelConfig(2, 2, 2), scorer.Accuracy{})
	require.NoError(t, o.Iterate())
	combos := o.Combinations()

	// Targets are taken from the probabilities computed on construction,
	// so check the second iteration against the refreshed ones too.
	for range 2 {
		for n, row := range o.Targets() {
			truth := ds.MultiLabel(n)
			for c, v := range row {
				if combos[c].Equal(truth) {
					assert.Equal(t, 1.0, v)
				} else {
					assert.Equal(t, 0.0, v)
				}
			}
			for l, bt := range o.BinaryTargets() {
				if truth.Matches(l) {
					assert.Equal(t, []float64{0, 1}, bt[n])
				} else {
					assert.Equal(t, []float64{1, 0}, bt[n])
				}
			}
		}
		require.NoError(t, o.Iterate())
	}
}

func TestBinaryTargetsClampOvershoot(t *testing.T) {
	ds := dataset.New(1, 2)
	require.NoError(t, ds.Add(dataset.NewSparseVectorFromDense([]float64{1}), dataset.NewMultiLabel(0)))
	require.NoError(t, ds.Add(dataset.NewSparseVectorFromDense([]float64{2}), dataset.NewMultiLabel(0, 1)))
	o := newOptimizer(t, ds, DefaultModelConfig(1, 2, 1), scorer.F1{})
	require.Len(t, o.Combinations(), 2)

	o.targets[0] = []float64{0.5000001, 0.5}
	o.updateBinaryTargets()
	assert.Equal(t, 1.0, o.binaryTargets[0][0][1])
	assert.Equal(t, 0.0, o.binaryTargets[0][0][0])
	assert.InDelta(t, 0.5, o.binaryTargets[1][0][1], 1e-15)
}

func TestZeroExpectedUtility(t *testing.T) {
	ds := twoLabels(t, 20)
	o := newOptimizer(t, ds, DefaultModelConfig(2, 2, 2), scorer.Accuracy{})
	for c := range o.probabilities[3] {
		o.probabilities[3][c] = 0
	}

	err := o.Iterate()
	require.ErrorIs(t, err, ErrZeroExpectedUtility)
	assert.Contains(t, err.Error(), "point 3")
	assert.Equal(t, 0, o.Terminator().NumIterations())

	cfg := o.Config()
	cfg.ZeroUtility = ZeroUtilityUniform
	require.NoError(t, o.SetConfig(cfg))
	require.NoError(t, o.updateTargets())
	truth := ds.MultiLabel(3)
	for c, v := range o.Targets()[3] {
		if o.Combinations()[c].Equal(truth) {
			assert.Equal(t, 1.0, v)
		} else {
			assert.Equal(t, 0.0, v)
		}
	}
}

func TestUniformTargetsWithoutPositiveScores(t *testing.T) {
	tgt := make([]float64, 4)
	uniformTargets(tgt, []float64{0, 0, 0, 0})
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, tgt)
	uniformTargets(tgt, []float64{0, 2, 0, 1})
	assert.Equal(t, []float64{0, 0.5, 0, 0.5}, tgt)
}

func TestUnknownFamilyFailsIteration(t *testing.T) {
	ds := twoLabels(t, 10)
	o := newOptimizer(t, ds, DefaultModelConfig(2, 2, 2), scorer.F1{})
	o.Model().BinaryFamily = Family(9)
	err := o.Iterate()
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestClassifierMismatch(t *testing.T) {
	ds := twoLabels(t, 10)
	o := newOptimizer(t, ds, DefaultModelConfig(2, 2, 2), scorer.F1{})
	o.Model().BinaryFamily = FamilyBoost
	err := o.Iterate()
	require.ErrorIs(t, err, ErrClassifierMismatch)
	assert.Contains(t, err.Error(), "component 0, label 0")
}

func TestBoostFamily(t *testing.T) {
	ds := twoLabels(t, 30)
	cfg := DefaultModelConfig(2, 2, 2)
	cfg.GatingFamily = FamilyBoost
	cfg.BinaryFamily = FamilyBoost
	o := newOptimizer(t, ds, cfg, scorer.F1{})
	oc := o.Config()
	oc.NumIterationsBinary = 5
	oc.NumIterationsGating = 3
	require.NoError(t, o.SetConfig(oc))

	for range 3 {
		require.NoError(t, o.Iterate())
		checkInvariants(t, o)
	}
	for _, v := range o.Terminator().History() {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	penalty, err := o.penalty()
	require.NoError(t, err)
	assert.Equal(t, 0.0, penalty)
}

func TestElasticNetFamily(t *testing.T) {
	for _, lineSearch := range []bool{true, false} {
		t.Run(fmt.Sprintf("lineSearch=%v", lineSearch), func(t *testing.T) {
			ds := twoLabels(t, 30)
			cfg := DefaultModelConfig(2, 2, 2)
			cfg.GatingFamily = FamilyElasticNet
			cfg.BinaryFamily = FamilyElasticNet
			o := newOptimizer(t, ds, cfg, scorer.Hamming{})
			oc := o.Config()
			oc.L1RatioBinary = 0.5
			oc.RegularizationBinary = 0.1
			oc.LineSearch = lineSearch
			require.NoError(t, o.SetConfig(oc))

			for range 3 {
				require.NoError(t, o.Iterate())
				checkInvariants(t, o)
			}
			obj, err := o.Objective()
			require.NoError(t, err)
			assert.False(t, math.IsNaN(obj) || math.IsInf(obj, 0), "objective %v", obj)
			assert.Equal(t, o.Terminator().LastValue(), obj)
		})
	}
}

func TestSetConfigValidates(t *testing.T) {
	ds := twoLabels(t, 10)
	o := newOptimizer(t, ds, DefaultModelConfig(2, 2, 2), scorer.F1{})
	cfg := o.Config()
	cfg.L1RatioBinary = 2
	assert.ErrorIs(t, o.SetConfig(cfg), ErrInvalidConfig)
	assert.Equal(t, DefaultConfig(), o.Config())
}

func TestRunUntilStopsAtFirstFlatIteration(t *testing.T) {
	term := optimization.NewTerminator(optimization.Minimize)
	term.MaxStableIterations = 1
	term.AbsoluteEpsilon = 1e-3
	term.RelativeEpsilon = 0

	seq := []float64{10, 8, 6, 5, 5, 5, 5}
	calls := 0
	n, err := runUntil(context.Background(), term, func() error {
		term.Add(seq[calls])
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, calls)
	assert.Equal(t, seq[:5], term.History())
}

func TestRunUntilHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	term := optimization.NewTerminator(optimization.Minimize)
	n, err := runUntil(ctx, term, func() error {
		t.Fatal("iterate called after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, n)
}

func TestTrainAndEvaluate(t *testing.T) {
	ds := twoLabels(t, 60)
	config := DefaultTrainConfig(2, ds)
	config.MaxIterations = 5
	o, err := Train(context.Background(), ds, scorer.F1{}, config)
	require.NoError(t, err)
	assert.LessOrEqual(t, o.Terminator().NumIterations(), 5)

	score := Evaluate(o.Model(), ds, o.Combinations(), scorer.F1{})
	assert.GreaterOrEqual(t, score, 0.75)
	assert.LessOrEqual(t, score, 1.0)
}

func TestTrainRejectsEmptyDataSet(t *testing.T) {
	ds := dataset.New(2, 2)
	_, err := Train(context.Background(), ds, scorer.F1{}, DefaultTrainConfig(2, ds))
	assert.ErrorIs(t, err, ErrNoData)
}
