// Package mathutil holds numerically stable helpers over probability vectors.
package mathutil

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Softmax returns exp(x) normalized to sum to one.
func Softmax(logits []float64) []float64 {
	probs := LogSoftmax(logits)
	for i, lp := range probs {
		probs[i] = math.Exp(lp)
	}
	return probs
}

// LogSoftmax returns x - logsumexp(x).
func LogSoftmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	lse := floats.LogSumExp(logits)
	if math.IsInf(lse, -1) {
		u := -math.Log(float64(len(logits)))
		for i := range out {
			out[i] = u
		}
		return out
	}
	for i, l := range logits {
		out[i] = l - lse
	}
	return out
}

// Entropy returns the Shannon entropy (nats) of a distribution.
func Entropy(p []float64) float64 {
	var h float64
	for _, v := range p {
		if v > 0 {
			h -= v * math.Log(v)
		}
	}
	return h
}

// Clamp01 restricts v to [0, 1].
func Clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
