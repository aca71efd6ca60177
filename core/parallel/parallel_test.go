package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryIndex(t *testing.T) {
	for _, n := range []int{1, 2, 7, 100, 1001} {
		hits := make([]int32, n)
		Parallelize(n, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			assert.Equal(t, int32(1), h, "n=%d index %d", n, i)
		}
	}
}

func TestParallelizeEmpty(t *testing.T) {
	called := false
	Parallelize(0, func(int, int) { called = true })
	ParallelizeWithThreshold(0, 10, func(int, int) { called = true })
	assert.False(t, called)
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	var calls [][2]int
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		calls = append(calls, [2]int{start, end})
	})
	assert.Equal(t, [][2]int{{0, 5}}, calls)
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 0, Workers(0))
	assert.Equal(t, 1, Workers(1))
	assert.LessOrEqual(t, Workers(1000), 1000)
	assert.GreaterOrEqual(t, Workers(1000), 1)
}
