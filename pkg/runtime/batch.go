package runtime

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunBatch runs fn over every item concurrently, bounded by concurrency,
// preserving the input order in the returned slice. It stops launching
// new work and returns the first error once one occurs, discarding the
// results of items that already ran.
func RunBatch[T, R any](ctx context.Context, items []T, concurrency int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]R, len(items))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for i, item := range items {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			res, err := fn(groupCtx, item)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
