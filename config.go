package cbm

import (
	"fmt"
	"math"
)

// ZeroUtilityPolicy decides what happens when a point's expected utility
// Σ_c P[n][c]·S[n][c] is zero or not finite.
type ZeroUtilityPolicy int

const (
	// ZeroUtilityFail aborts the iteration with ErrZeroExpectedUtility.
	ZeroUtilityFail ZeroUtilityPolicy = iota
	// ZeroUtilityUniform spreads the point's target mass uniformly over the
	// combinations with a positive score, or over all of them if none has one.
	ZeroUtilityUniform
)

func (p ZeroUtilityPolicy) String() string {
	switch p {
	case ZeroUtilityFail:
		return "fail"
	case ZeroUtilityUniform:
		return "uniform"
	}
	return fmt.Sprintf("ZeroUtilityPolicy(%d)", int(p))
}

// Config holds the optimizer's refit parameters. Gating fields apply to the
// gating classifier, Binary fields to every per-label classifier.
type Config struct {
	// Ridge logistic regression: Gaussian prior variance σ² on the weights.
	PriorVarianceGating float64
	PriorVarianceBinary float64

	// Elastic-net logistic regression.
	RegularizationGating float64
	RegularizationBinary float64
	L1RatioGating        float64
	L1RatioBinary        float64
	LineSearch           bool

	// Gradient boosting.
	NumLeavesGating     int
	NumLeavesBinary     int
	ShrinkageGating     float64
	ShrinkageBinary     float64
	NumIterationsGating int // boosting rounds per refit
	NumIterationsBinary int

	// MaxRefitIterations caps the inner iterations of a logistic refit.
	MaxRefitIterations int

	// Workers bounds the goroutines used per stage; 0 means GOMAXPROCS.
	Workers int

	ZeroUtility ZeroUtilityPolicy
}

// DefaultConfig returns the default optimizer configuration.
func DefaultConfig() Config {
	return Config{
		PriorVarianceGating:  1,
		PriorVarianceBinary:  1,
		RegularizationGating: 1,
		RegularizationBinary: 1,
		L1RatioGating:        0,
		L1RatioBinary:        0,
		LineSearch:           true,
		NumLeavesGating:      2,
		NumLeavesBinary:      2,
		ShrinkageGating:      0.1,
		ShrinkageBinary:      0.1,
		NumIterationsGating:  20,
		NumIterationsBinary:  20,
		MaxRefitIterations:   10,
		ZeroUtility:          ZeroUtilityFail,
	}
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"PriorVarianceGating", c.PriorVarianceGating},
		{"PriorVarianceBinary", c.PriorVarianceBinary},
		{"ShrinkageGating", c.ShrinkageGating},
		{"ShrinkageBinary", c.ShrinkageBinary},
	}
	for _, f := range positive {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"RegularizationGating", c.RegularizationGating},
		{"RegularizationBinary", c.RegularizationBinary},
	} {
		if !(f.v >= 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"L1RatioGating", c.L1RatioGating},
		{"L1RatioBinary", c.L1RatioBinary},
	} {
		if !(f.v >= 0 && f.v <= 1) {
			return fmt.Errorf("%w: %s must be in [0, 1], got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"NumLeavesGating", c.NumLeavesGating},
		{"NumLeavesBinary", c.NumLeavesBinary},
		{"NumIterationsGating", c.NumIterationsGating},
		{"NumIterationsBinary", c.NumIterationsBinary},
		{"MaxRefitIterations", c.MaxRefitIterations},
	} {
		if f.v < 1 {
			return fmt.Errorf("%w: %s must be at least 1, got %d", ErrInvalidConfig, f.name, f.v)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: Workers must be non-negative, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.ZeroUtility != ZeroUtilityFail && c.ZeroUtility != ZeroUtilityUniform {
		return fmt.Errorf("%w: unknown zero-utility policy %v", ErrInvalidConfig, c.ZeroUtility)
	}
	return nil
}

func (c Config) priorVariance(r role) float64 {
	if r == gatingRole {
		return c.PriorVarianceGating
	}
	return c.PriorVarianceBinary
}

func (c Config) regularization(r role) float64 {
	if r == gatingRole {
		return c.RegularizationGating
	}
	return c.RegularizationBinary
}

func (c Config) l1Ratio(r role) float64 {
	if r == gatingRole {
		return c.L1RatioGating
	}
	return c.L1RatioBinary
}

func (c Config) numLeaves(r role) int {
	if r == gatingRole {
		return c.NumLeavesGating
	}
	return c.NumLeavesBinary
}

func (c Config) shrinkage(r role) float64 {
	if r == gatingRole {
		return c.ShrinkageGating
	}
	return c.ShrinkageBinary
}

func (c Config) numIterations(r role) int {
	if r == gatingRole {
		return c.NumIterationsGating
	}
	return c.NumIterationsBinary
}
