package worker

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Map runs fn over items on up to workers goroutines and returns the results
// in input order. The first error cancels the remaining work and is
// returned. workers <= 0 uses GOMAXPROCS.
func Map[T, R any](ctx context.Context, items []T, workers int, fn func(context.Context, int, T) (R, error)) ([]R, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]R, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := fn(ctx, i, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Batches runs each batch sequentially on one worker and flattens the
// results in order.
func Batches[T, R any](ctx context.Context, batches [][]T, workers int, fn func(context.Context, T) (R, error)) ([]R, error) {
	perBatch, err := Map(ctx, batches, workers, func(ctx context.Context, _ int, batch []T) ([]R, error) {
		out := make([]R, 0, len(batch))
		for _, item := range batch {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := fn(ctx, item)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	var all []R
	for _, rs := range perBatch {
		all = append(all, rs...)
	}
	return all, nil
}
