// Package parallel contains fork-join primitives over index ranges.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers resolves a worker limit; zero or negative means GOMAXPROCS.
func Workers(limit int) int {
	if limit <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return limit
}

// For runs body(i) for every i in [0, length) on at most limit goroutines and
// returns the first error. All started bodies finish before For returns.
func For(length, limit int, body func(i int) error) error {
	if length <= 0 {
		return nil
	}
	var g errgroup.Group
	g.SetLimit(Workers(limit))
	for i := range length {
		g.Go(func() error {
			return body(i)
		})
	}
	return g.Wait()
}

// ForEach runs body(i) for every i in [0, length) on at most limit goroutines.
// Work is split into contiguous blocks, one goroutine per block.
func ForEach(length, limit int, body func(i int)) {
	blocks(length, Workers(limit), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			body(i)
		}
	})
}

// Sum adds f(i) over [0, length). Partial sums are combined in block order so
// the result does not depend on scheduling.
func Sum(length, limit int, f func(i int) float64) float64 {
	partial := make([]float64, Workers(limit))
	blocks(length, len(partial), func(b, lo, hi int) {
		var s float64
		for i := lo; i < hi; i++ {
			s += f(i)
		}
		partial[b] = s
	})
	var total float64
	for _, s := range partial {
		total += s
	}
	return total
}

// blocks splits [0, length) into at most n contiguous ranges and runs them
// concurrently; body receives the block number and its range.
func blocks(length, n int, body func(b, lo, hi int)) {
	if length <= 0 {
		return
	}
	if n > length {
		n = length
	}
	var g errgroup.Group
	for b := range n {
		lo, hi := b*length/n, (b+1)*length/n
		g.Go(func() error {
			body(b, lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
