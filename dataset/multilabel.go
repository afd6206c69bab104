package dataset

import (
	"slices"
	"strconv"
	"strings"
)

// MultiLabel is a set of label indices.
type MultiLabel struct {
	labels []int
}

// NewMultiLabel builds a label set; duplicates are dropped.
func NewMultiLabel(labels ...int) MultiLabel {
	ls := slices.Clone(labels)
	slices.Sort(ls)
	return MultiLabel{labels: slices.Compact(ls)}
}

// MatchedLabels returns the labels in increasing order. The slice must not be modified.
func (m MultiLabel) MatchedLabels() []int {
	return m.labels
}

// Matches reports whether label l is in the set.
func (m MultiLabel) Matches(l int) bool {
	_, ok := slices.BinarySearch(m.labels, l)
	return ok
}

// Len returns the number of labels in the set.
func (m MultiLabel) Len() int {
	return len(m.labels)
}

// Equal reports whether both sets hold the same labels.
func (m MultiLabel) Equal(o MultiLabel) bool {
	return slices.Equal(m.labels, o.labels)
}

// Key is a canonical string usable as a map key.
func (m MultiLabel) Key() string {
	var b strings.Builder
	for i, l := range m.labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(l))
	}
	return b.String()
}

func (m MultiLabel) String() string {
	return "{" + m.Key() + "}"
}
