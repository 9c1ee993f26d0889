package filter

import (
	"sync"
)

// Options tunes how a filter runs; results never depend on them
type Options struct {
	// Workers bounds how many depth planes are filtered concurrently.
	// Values below 2 run sequentially.
	Workers int
}

// Option mutates Options
type Option func(*Options)

// WithWorkers sets the number of concurrent plane workers
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// forEachPlane calls fn for every z in [0, depth). Each output voxel depends
// only on the read-only input, so planes are independent.
func forEachPlane(depth, workers int, fn func(z int)) {
	if workers < 2 || depth < 2 {
		for z := 0; z < depth; z++ {
			fn(z)
		}
		return
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for z := 0; z < depth; z++ {
		z := z // per-iteration copy (go 1.21 loop semantics)
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			fn(z)
		}()
	}
	wg.Wait()
}
