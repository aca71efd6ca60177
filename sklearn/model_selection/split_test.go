package model_selection

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func checkPartition(t *testing.T, folds []CVFold, n int) {
	t.Helper()
	seen := make(map[int]int)
	for _, f := range folds {
		assert.Equal(t, n, len(f.TrainIndices)+len(f.TestIndices))
		assert.True(t, sort.IntsAreSorted(f.TestIndices))
		for _, idx := range f.TestIndices {
			seen[idx]++
		}
	}
	assert.Len(t, seen, n)
	for idx, count := range seen {
		assert.Equal(t, 1, count, "index %d tested %d times", idx, count)
	}
}

func TestKFold(t *testing.T) {
	X := mat.NewDense(12, 1, nil)
	folds := NewKFold(5, true, 42).Split(X, nil)

	assert.Len(t, folds, 5)
	checkPartition(t, folds, 12)

	sizes := []int{}
	for _, f := range folds {
		sizes = append(sizes, len(f.TestIndices))
	}
	assert.Equal(t, []int{3, 3, 2, 2, 2}, sizes)

	again := NewKFold(5, true, 42).Split(X, nil)
	assert.Equal(t, folds, again)
}

func TestStratifiedKFold(t *testing.T) {
	n := 50
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if i < 20 {
			y.Set(i, 0, 1)
		}
	}

	folds := NewStratifiedKFold(5, true, 3).Split(X, y)
	checkPartition(t, folds, n)

	for _, f := range folds {
		assert.Len(t, f.TestIndices, 10)
		positives := 0
		for _, idx := range f.TestIndices {
			if y.At(idx, 0) == 1 {
				positives++
			}
		}
		assert.Equal(t, 4, positives)
	}

	again := NewStratifiedKFold(5, true, 3).Split(X, y)
	assert.Equal(t, folds, again)

	other := NewStratifiedKFold(5, true, 4).Split(X, y)
	assert.NotEqual(t, folds, other)
}

func TestNewKFoldDefaults(t *testing.T) {
	assert.Equal(t, 5, NewKFold(1, false, 0).GetNSplits())
	assert.Equal(t, 5, NewStratifiedKFold(0, false, 0).GetNSplits())
}
