// Package scorer provides utility functions that rate a candidate label
// combination against the ground truth.
package scorer

import "github.com/happyhackingspace/cbm/dataset"

// Scorer rates prediction against truth. Higher is better; scores must be
// non-negative.
type Scorer interface {
	Score(numLabels int, truth, prediction dataset.MultiLabel) float64
}

// Func adapts a plain function to Scorer.
type Func func(numLabels int, truth, prediction dataset.MultiLabel) float64

// Score calls f.
func (f Func) Score(numLabels int, truth, prediction dataset.MultiLabel) float64 {
	return f(numLabels, truth, prediction)
}

// F1 is the instance-level F1 measure. Two empty sets score 1.
type F1 struct{}

// Score returns 2·|truth ∩ prediction| / (|truth| + |prediction|).
func (F1) Score(_ int, truth, prediction dataset.MultiLabel) float64 {
	if truth.Len() == 0 && prediction.Len() == 0 {
		return 1
	}
	tp := intersection(truth, prediction)
	return 2 * float64(tp) / float64(truth.Len()+prediction.Len())
}

// Accuracy is subset accuracy: 1 on an exact match, 0 otherwise.
type Accuracy struct{}

// Score returns 1 if prediction equals truth and 0 otherwise.
func (Accuracy) Score(_ int, truth, prediction dataset.MultiLabel) float64 {
	if truth.Equal(prediction) {
		return 1
	}
	return 0
}

// Hamming is one minus the Hamming loss over all labels.
type Hamming struct{}

// Score returns the fraction of the numLabels labels on which truth and
// prediction agree.
func (Hamming) Score(numLabels int, truth, prediction dataset.MultiLabel) float64 {
	if numLabels == 0 {
		return 1
	}
	tp := intersection(truth, prediction)
	mismatches := truth.Len() + prediction.Len() - 2*tp
	return 1 - float64(mismatches)/float64(numLabels)
}

// Jaccard is the intersection over union of both sets. Two empty sets score 1.
type Jaccard struct{}

// Score returns |truth ∩ prediction| / |truth ∪ prediction|.
func (Jaccard) Score(_ int, truth, prediction dataset.MultiLabel) float64 {
	tp := intersection(truth, prediction)
	union := truth.Len() + prediction.Len() - tp
	if union == 0 {
		return 1
	}
	return float64(tp) / float64(union)
}

func intersection(a, b dataset.MultiLabel) int {
	x, y := a.MatchedLabels(), b.MatchedLabels()
	n := 0
	for i, j := 0, 0; i < len(x) && j < len(y); {
		switch {
		case x[i] == y[j]:
			n++
			i++
			j++
		case x[i] < y[j]:
			i++
		default:
			j++
		}
	}
	return n
}
