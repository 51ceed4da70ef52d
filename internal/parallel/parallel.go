// Package parallel splits kernel loops across worker goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how a loop is split.
type Config struct {
	Workers  int // Number of worker goroutines; <= 1 runs sequentially.
	MinChunk int // Minimum iterations per goroutine.
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	return NewConfig(0)
}

// NewConfig returns a config with the given worker count; 0 means one per CPU.
func NewConfig(workers int) Config {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return Config{
		Workers:  workers,
		MinChunk: 1,
	}
}

// For executes f(i) for i in [0, n). Iterations are split into contiguous
// chunks; each index runs exactly once.
func (cfg Config) For(n int, f func(i int)) {
	if cfg.Workers <= 1 || n <= cfg.MinChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunk := max((n+cfg.Workers-1)/cfg.Workers, cfg.MinChunk, 1)

	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
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

// ForPlanes runs f over every (batch, channel) plane of an NCHW tensor.
func (cfg Config) ForPlanes(batch, channels int, f func(n, c int)) {
	cfg.For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	})
}
