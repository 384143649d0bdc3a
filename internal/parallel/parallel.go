// Package parallel fans CPU kernel work out over the batch dimension.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count.
//
// Kernels here parallelize over batch samples, and a single sample is already
// a large unit of work, so the minimum chunk is one item.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return WithWorkers(n)
}

// WithWorkers returns a config using exactly n workers (n <= 1 disables
// parallelism).
func WithWorkers(n int) Config {
	if n < 1 {
		n = 1
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	ForChunks(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// ForChunks splits [0, n) into contiguous chunks and calls f(start, end) once
// per chunk, concurrently. Each call owns its chunk, so per-chunk scratch
// buffers can be allocated inside f without synchronization.
func ForChunks(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	minChunk := max(cfg.MinChunkSize, 1)
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n <= minChunk {
		f(0, n)
		return
	}

	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, minChunk)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}
