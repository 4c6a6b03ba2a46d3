// Package parallel provides index-based fan-out helpers.
//
// Work is addressed by index so that callers write results into slots they
// pre-allocated; no locking is needed on the results and the original order
// survives any degree of parallelism.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Parallelize divides items into contiguous ranges, one per worker, and runs
// fn(start, end) for each range concurrently.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(items, runtime.NumCPU(), fn)
}

// ParallelizeN is Parallelize with an explicit worker count.
func ParallelizeN(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ForEach calls fn(ctx, i) for every i in [0, items) using at most workers
// goroutines. Indices are handed out in increasing order.
//
// When calls fail, ForEach returns the error of the lowest failing index, so the
// reported failure does not depend on scheduling: after a failure at index f no
// index above f is started, while indices below f still run to completion.
// Cancellation of ctx stops all work and is reported as ctx.Err().
func ForEach(ctx context.Context, items, workers int, fn func(ctx context.Context, i int) error) error {
	if items <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}

	var (
		next     int64 = -1
		mu       sync.Mutex
		firstIdx = items
		firstErr error
		wg       sync.WaitGroup
	)

	record := func(i int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if i < firstIdx {
			firstIdx, firstErr = i, err
		}
	}
	stopped := func(i int) bool {
		mu.Lock()
		defer mu.Unlock()
		return i > firstIdx
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&next, 1))
				if i >= items || stopped(i) {
					return
				}
				if err := ctx.Err(); err != nil {
					record(i, err)
					return
				}
				if err := fn(ctx, i); err != nil {
					record(i, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	return firstErr
}
