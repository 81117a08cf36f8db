// Package parallel spreads independent loop iterations across worker
// goroutines. The CPU backend uses it for the batch-times-channel loops of
// convolution, where every output slice is written by exactly one iteration.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how loops are split across goroutines.
type Config struct {
	// Enabled turns parallel execution on. Disabled loops run inline.
	Enabled bool

	// NumWorkers is the number of goroutines to spread iterations over.
	NumWorkers int

	// MinChunkSize is the smallest n worth parallelizing; shorter loops run
	// inline to avoid goroutine overhead.
	MinChunkSize int
}

// DefaultConfig sizes the worker pool to the machine.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// For executes f(i) for every i in [0, n). Iterations must be independent:
// no two may write the same memory.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + cfg.NumWorkers - 1) / cfg.NumWorkers
	if chunk < cfg.MinChunkSize {
		chunk = cfg.MinChunkSize
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForBatch executes f(b, c) over a batch-by-channel grid, flattening the two
// loops so the work splits evenly even when one dimension is small.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
