package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestForChunks_CoversRangeOnce(t *testing.T) {
	for _, workers := range []int{1, 2, 3, 8} {
		seen := make([]int, 37)
		var mu sync.Mutex
		ForChunks(len(seen), func(start, end int) {
			mu.Lock()
			defer mu.Unlock()
			for i := start; i < end; i++ {
				seen[i]++
			}
		}, WithWorkers(workers))

		for i, c := range seen {
			assert.Equalf(t, 1, c, "workers=%d index=%d", workers, i)
		}
	}
}

func TestForChunks_EmptyRange(t *testing.T) {
	called := false
	ForChunks(0, func(_, _ int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestWithWorkers_DisablesBelowTwo(t *testing.T) {
	assert.False(t, WithWorkers(0).Enabled)
	assert.False(t, WithWorkers(1).Enabled)
	assert.True(t, WithWorkers(4).Enabled)
}
