package dataset

import "sort"

// SparseVector is a feature row. Indices are kept sorted and unique.
type SparseVector struct {
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
	Dim     int       `json:"dim"`
}

// NewSparseVector creates an empty row of the given dimension.
func NewSparseVector(dim int) SparseVector {
	return SparseVector{Dim: dim}
}

// NewSparseVectorFromDense keeps the non-zero entries of dense.
func NewSparseVectorFromDense(dense []float64) SparseVector {
	sv := SparseVector{Dim: len(dense)}
	for i, v := range dense {
		if v != 0 {
			sv.Indices = append(sv.Indices, i)
			sv.Values = append(sv.Values, v)
		}
	}
	return sv
}

// Set adds or updates the value at idx.
func (sv *SparseVector) Set(idx int, val float64) {
	pos := sort.SearchInts(sv.Indices, idx)
	if pos < len(sv.Indices) && sv.Indices[pos] == idx {
		sv.Values[pos] = val
		return
	}
	sv.Indices = append(sv.Indices, 0)
	sv.Values = append(sv.Values, 0)
	copy(sv.Indices[pos+1:], sv.Indices[pos:])
	copy(sv.Values[pos+1:], sv.Values[pos:])
	sv.Indices[pos] = idx
	sv.Values[pos] = val
}

// Get returns the value at idx, zero when absent.
func (sv SparseVector) Get(idx int) float64 {
	pos := sort.SearchInts(sv.Indices, idx)
	if pos < len(sv.Indices) && sv.Indices[pos] == idx {
		return sv.Values[pos]
	}
	return 0
}

// Dot computes the dot product with a dense vector. Indices past len(dense)
// are ignored.
func (sv SparseVector) Dot(dense []float64) float64 {
	var sum float64
	for i, idx := range sv.Indices {
		if idx < len(dense) {
			sum += sv.Values[i] * dense[idx]
		}
	}
	return sum
}

// ToDense converts to a dense float64 slice of length Dim.
func (sv SparseVector) ToDense() []float64 {
	dense := make([]float64, sv.Dim)
	for i, idx := range sv.Indices {
		if idx < sv.Dim {
			dense[idx] = sv.Values[i]
		}
	}
	return dense
}
