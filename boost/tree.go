package boost

import (
	"slices"

	"github.com/happyhackingspace/cbm/dataset"
)

// Node is a regression tree node. Leaves have Left == Right == -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool {
	return n.Left < 0
}

// Tree is a binary regression tree; Nodes[0] is the root. A point goes left
// when its feature value is <= Threshold.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict returns the leaf value for x.
func (t *Tree) Predict(x dataset.SparseVector) float64 {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := t.Nodes[i]
		if x.Get(n.Feature) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int {
	n := 0
	for _, node := range t.Nodes {
		if node.IsLeaf() {
			n++
		}
	}
	return n
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

// treeBuilder grows trees on dense feature columns. Rows contribute their
// first Dim features; the rest of a column stays zero.
type treeBuilder struct {
	cols      [][]float64 // [numFeatures][numPoints]
	maxLeaves int
}

func newTreeBuilder(rows []dataset.SparseVector, numFeatures, maxLeaves int) *treeBuilder {
	cols := make([][]float64, numFeatures)
	for d := range cols {
		cols[d] = make([]float64, len(rows))
	}
	for n, x := range rows {
		dense := x.ToDense()
		for d := range min(numFeatures, len(dense)) {
			cols[d][n] = dense[d]
		}
	}
	return &treeBuilder{cols: cols, maxLeaves: maxLeaves}
}

// build grows a tree best-first on the weighted squared error of resp,
// splitting the leaf with the largest gain until maxLeaves is reached or no
// split helps. leafValue computes the output of a leaf from its points. The
// returned map holds the points of every leaf, keyed by node index.
func (b *treeBuilder) build(points []int, resp, weights []float64, leafValue func(idx []int) float64) (*Tree, map[int][]int) {
	tree := &Tree{Nodes: []Node{{Left: -1, Right: -1}}}
	members := map[int][]int{0: points}
	pending := map[int]*split{}
	if s := b.bestSplit(points, resp, weights); s != nil {
		pending[0] = s
	}

	for len(members) < b.maxLeaves && len(pending) > 0 {
		leaf := -1
		for id, s := range pending {
			if leaf < 0 || s.gain > pending[leaf].gain || (s.gain == pending[leaf].gain && id < leaf) {
				leaf = id
			}
		}
		s := pending[leaf]
		delete(pending, leaf)
		delete(members, leaf)

		left, right := len(tree.Nodes), len(tree.Nodes)+1
		tree.Nodes = append(tree.Nodes, Node{Left: -1, Right: -1}, Node{Left: -1, Right: -1})
		tree.Nodes[leaf] = Node{Feature: s.feature, Threshold: s.threshold, Left: left, Right: right}
		members[left] = s.left
		members[right] = s.right
		for _, child := range []int{left, right} {
			if cs := b.bestSplit(members[child], resp, weights); cs != nil {
				pending[child] = cs
			}
		}
	}

	for id, idx := range members {
		tree.Nodes[id].Value = leafValue(idx)
	}
	return tree, members
}

func (b *treeBuilder) bestSplit(points []int, resp, weights []float64) *split {
	if len(points) < 2 {
		return nil
	}
	var totalS, totalW float64
	for _, n := range points {
		totalS += weights[n] * resp[n]
		totalW += weights[n]
	}
	if totalW <= 0 {
		return nil
	}
	parent := totalS * totalS / totalW

	var best *split
	sorted := slices.Clone(points)
	for d, col := range b.cols {
		slices.SortStableFunc(sorted, func(x, y int) int {
			switch {
			case col[x] < col[y]:
				return -1
			case col[x] > col[y]:
				return 1
			}
			return 0
		})
		var s, w float64
		for i := 0; i < len(sorted)-1; i++ {
			n := sorted[i]
			s += weights[n] * resp[n]
			w += weights[n]
			lo, hi := col[n], col[sorted[i+1]]
			if lo == hi {
				continue
			}
			rw := totalW - w
			if w <= 0 || rw <= 0 {
				continue
			}
			rs := totalS - s
			gain := s*s/w + rs*rs/rw - parent
			if gain > 1e-12 && (best == nil || gain > best.gain) {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = &split{feature: d, threshold: threshold, gain: gain}
			}
		}
	}
	if best == nil {
		return nil
	}
	col := b.cols[best.feature]
	for _, n := range points {
		if col[n] <= best.threshold {
			best.left = append(best.left, n)
		} else {
			best.right = append(best.right, n)
		}
	}
	return best
}
