// Package logistic implements multinomial logistic regression trained on soft
// targets with per-instance weights, under ridge or elastic-net penalties.
package logistic

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/happyhackingspace/cbm/dataset"
	"github.com/happyhackingspace/cbm/internal/mathutil"
)

// Regression holds a multinomial logistic regression model. A binary
// classifier is a Regression with two classes.
type Regression struct {
	NumClasses  int         `json:"num_classes"`
	NumFeatures int         `json:"num_features"`
	Coef        [][]float64 `json:"coef"`      // [numClasses][numFeatures]
	Intercept   []float64   `json:"intercept"` // [numClasses]
}

// New creates a zero-weight model.
func New(numClasses, numFeatures int) *Regression {
	coef := make([][]float64, numClasses)
	for k := range coef {
		coef[k] = make([]float64, numFeatures)
	}
	return &Regression{
		NumClasses:  numClasses,
		NumFeatures: numFeatures,
		Coef:        coef,
		Intercept:   make([]float64, numClasses),
	}
}

// Randomize draws every coefficient from N(0, scale²). Intercepts are left untouched.
func (m *Regression) Randomize(src rand.Source, scale float64) {
	normal := distuv.Normal{Mu: 0, Sigma: scale, Src: src}
	for k := range m.Coef {
		for d := range m.Coef[k] {
			m.Coef[k][d] = normal.Rand()
		}
	}
}

// NumParams returns the length of the flat parameter vector.
func (m *Regression) NumParams() int {
	return m.NumClasses * (m.NumFeatures + 1)
}

// Params returns a copy of the parameters, laid out per class as
// [coef... | intercept].
func (m *Regression) Params() []float64 {
	params := make([]float64, m.NumParams())
	m.paramsInto(params)
	return params
}

func (m *Regression) paramsInto(params []float64) {
	stride := m.NumFeatures + 1
	for k := range m.NumClasses {
		offset := k * stride
		copy(params[offset:offset+m.NumFeatures], m.Coef[k])
		params[offset+m.NumFeatures] = m.Intercept[k]
	}
}

// SetParams overwrites the parameters from a flat vector laid out as in Params.
func (m *Regression) SetParams(params []float64) {
	stride := m.NumFeatures + 1
	for k := range m.NumClasses {
		offset := k * stride
		copy(m.Coef[k], params[offset:offset+m.NumFeatures])
		m.Intercept[k] = params[offset+m.NumFeatures]
	}
}

// Logits returns coef·x + intercept for every class.
func (m *Regression) Logits(x dataset.SparseVector) []float64 {
	logits := make([]float64, m.NumClasses)
	for k := range m.NumClasses {
		logits[k] = x.Dot(m.Coef[k]) + m.Intercept[k]
	}
	return logits
}

// PredictClassProbs returns the class distribution for x.
func (m *Regression) PredictClassProbs(x dataset.SparseVector) []float64 {
	return mathutil.Softmax(m.Logits(x))
}

// PredictLogClassProbs returns the log class distribution for x.
func (m *Regression) PredictLogClassProbs(x dataset.SparseVector) []float64 {
	return mathutil.LogSoftmax(m.Logits(x))
}

// Classes returns the number of classes.
func (m *Regression) Classes() int {
	return m.NumClasses
}
