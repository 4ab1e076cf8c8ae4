package utils

import (
	"context"
	"sync"
)

// ParallelForEach calls fn for each item using at most workers goroutines.
// The returned slice holds fn's error at the item's index. Items not yet
// started when ctx is done are skipped and report ctx.Err().
func ParallelForEach[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	next := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range next {
				if err := ctx.Err(); err != nil {
					errs[idx] = err
					continue
				}
				errs[idx] = fn(ctx, items[idx])
			}
		}()
	}

	for i := range items {
		if ctx.Err() == nil {
			select {
			case next <- i:
				continue
			case <-ctx.Done():
			}
		}
		for j := i; j < len(items); j++ {
			errs[j] = ctx.Err()
		}
		break
	}

	close(next)
	wg.Wait()
	return errs
}
