package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminatorStableRun(t *testing.T) {
	term := NewTerminator(Minimize)
	term.MaxStableIterations = 2
	term.RelativeEpsilon = 0

	for _, v := range []float64{10, 8, 6} {
		term.Add(v)
		assert.False(t, term.ShouldTerminate(), "value %v", v)
	}
	term.Add(6)
	assert.False(t, term.ShouldTerminate())
	assert.Equal(t, 1, term.StableIterations())

	term.Add(6.00001)
	assert.True(t, term.ShouldTerminate())
	assert.True(t, term.IsConverged())
	assert.Equal(t, 5, term.NumIterations())
	assert.Equal(t, 6.0, term.BestValue())
	assert.Equal(t, 6.00001, term.LastValue())
}

func TestTerminatorImprovementResetsStableCount(t *testing.T) {
	term := NewTerminator(Minimize)
	term.MaxStableIterations = 2
	term.Add(5)
	term.Add(5)
	assert.Equal(t, 1, term.StableIterations())
	term.Add(3)
	assert.Equal(t, 0, term.StableIterations())
	assert.False(t, term.ShouldTerminate())
}

func TestTerminatorMaximize(t *testing.T) {
	term := NewTerminator(Maximize)
	term.MaxStableIterations = 1
	term.Add(1)
	term.Add(2)
	assert.False(t, term.ShouldTerminate())
	term.Add(1.5)
	assert.True(t, term.ShouldTerminate())
	assert.Equal(t, 2.0, term.BestValue())
}

func TestTerminatorMaxIterationsAndForce(t *testing.T) {
	term := NewTerminator(Minimize)
	term.MaxIterations = 3
	for i := range 3 {
		assert.False(t, term.ShouldTerminate())
		term.Add(float64(100 - 10*i))
	}
	assert.True(t, term.ShouldTerminate())
	assert.False(t, term.IsConverged())

	term.Reset()
	assert.Equal(t, 0, term.NumIterations())
	assert.True(t, math.IsNaN(term.LastValue()))
	assert.False(t, term.ShouldTerminate())
	term.ForceTerminate()
	assert.True(t, term.ShouldTerminate())
}

func TestTerminatorNonFiniteValuesRestartStability(t *testing.T) {
	term := NewTerminator(Minimize)
	term.MaxStableIterations = 1

	term.Add(math.Inf(1))
	term.Add(10)
	assert.False(t, term.ShouldTerminate(), "first finite value after +Inf is a new baseline")
	assert.Equal(t, 0, term.StableIterations())
	term.Add(10)
	assert.True(t, term.ShouldTerminate())

	term.Reset()
	term.Add(4)
	term.Add(4)
	assert.Equal(t, 1, term.StableIterations())
	term.Add(math.NaN())
	assert.Equal(t, 0, term.StableIterations())
	assert.False(t, term.ShouldTerminate())
	term.Add(3)
	assert.False(t, term.ShouldTerminate())
	assert.Equal(t, 3.0, term.BestValue())
	assert.Equal(t, 4, term.NumIterations())
}

func TestTerminatorRelativeTolerance(t *testing.T) {
	term := NewTerminator(Minimize)
	term.MaxStableIterations = 1
	term.AbsoluteEpsilon = 0
	term.RelativeEpsilon = 1e-2

	term.Add(1000)
	term.Add(995)
	assert.True(t, term.ShouldTerminate(), "a half-percent step is within the relative tolerance")

	term.Reset()
	term.Add(1000)
	term.Add(900)
	assert.False(t, term.ShouldTerminate())
}
