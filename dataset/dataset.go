// Package dataset holds multi-label training data: sparse feature rows paired
// with label sets.
package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrFeatureOutOfRange = errors.New("dataset: feature index out of range")
	ErrLabelOutOfRange   = errors.New("dataset: label index out of range")
)

// DataSet is a multi-label classification data set.
type DataSet struct {
	NumFeatures int
	NumLabels   int

	rows   []SparseVector
	labels []MultiLabel
}

// New creates an empty data set.
func New(numFeatures, numLabels int) *DataSet {
	return &DataSet{NumFeatures: numFeatures, NumLabels: numLabels}
}

// Add appends a data point. The row dimension is forced to NumFeatures.
func (d *DataSet) Add(row SparseVector, labels MultiLabel) error {
	for _, idx := range row.Indices {
		if idx < 0 || idx >= d.NumFeatures {
			return fmt.Errorf("%w: %d (num features %d)", ErrFeatureOutOfRange, idx, d.NumFeatures)
		}
	}
	for _, l := range labels.MatchedLabels() {
		if l < 0 || l >= d.NumLabels {
			return fmt.Errorf("%w: %d (num labels %d)", ErrLabelOutOfRange, l, d.NumLabels)
		}
	}
	row.Dim = d.NumFeatures
	d.rows = append(d.rows, row)
	d.labels = append(d.labels, labels)
	return nil
}

// NumDataPoints returns the number of rows.
func (d *DataSet) NumDataPoints() int {
	return len(d.rows)
}

// Row returns the feature row of data point i.
func (d *DataSet) Row(i int) SparseVector {
	return d.rows[i]
}

// Rows returns all feature rows. The slice must not be modified.
func (d *DataSet) Rows() []SparseVector {
	return d.rows
}

// MultiLabel returns the ground truth of data point i.
func (d *DataSet) MultiLabel(i int) MultiLabel {
	return d.labels[i]
}

// MultiLabels returns the ground truth of every data point. The slice must not be modified.
func (d *DataSet) MultiLabels() []MultiLabel {
	return d.labels
}

// GatherMultiLabels returns the distinct label sets of the data set in the
// order they first appear.
func GatherMultiLabels(d *DataSet) []MultiLabel {
	seen := make(map[string]bool)
	var out []MultiLabel
	for _, ml := range d.labels {
		key := ml.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ml)
	}
	return out
}
