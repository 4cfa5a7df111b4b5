package util

import (
	"context"
	"sync"
)

// Map runs fn over inputs with at most workers concurrent calls and returns
// the results in input order. The first error cancels the remaining calls
// and is returned; results are nil in that case.
func Map[T, R any](parent context.Context, inputs []T, workers int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(inputs) == 0 {
		return nil, parent.Err()
	}
	workers = max(1, min(workers, len(inputs)))

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	results := make([]R, len(inputs))
	next := make(chan int)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				r, err := fn(ctx, inputs[i])
				if err != nil {
					cancel(err)
					return
				}
				results[i] = r
			}
		}()
	}

feed:
	for i := range inputs {
		select {
		case <-ctx.Done():
			break feed
		case next <- i:
		}
	}
	close(next)
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		return nil, err
	}
	return results, nil
}
