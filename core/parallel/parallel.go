// Package parallel splits index ranges over CPU workers. It is used by the
// model families for per-row prediction and per-class tree fitting, where
// every range writes to disjoint output slots.
package parallel

import (
	"runtime"
	"sync"
)

// Workers returns the number of goroutines used for n items: GOMAXPROCS,
// never more than n, and at least 1 when n > 0.
func Workers(n int) int {
	if n <= 0 {
		return 0
	}
	w := runtime.GOMAXPROCS(0)
	if w > n {
		w = n
	}
	return w
}

// Parallelize calls fn over contiguous chunks [start, end) covering
// [0, items) and waits for all of them.
func Parallelize(items int, fn func(start, end int)) {
	workers := Workers(items)
	if workers == 0 {
		return
	}
	if workers == 1 {
		fn(0, items)
		return
	}

	chunk := (items + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < items; start += chunk {
		end := min(start+chunk, items)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) on the calling goroutine when
// items <= threshold, and Parallelize otherwise.
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}
