package filterapi

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelFor splits [0, n) into ranges of grain items and calls fn for each
// range on a bounded worker pool. Ranges never overlap, so workers writing
// only their own tuples need no locking. It returns after every started
// range finished: the first error, ctx's error if ctx was canceled, or nil.
// A non-positive grain picks one based on GOMAXPROCS.
func ParallelFor(ctx context.Context, n, grain int, fn func(ctx context.Context, start, end int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	workers := runtime.GOMAXPROCS(0)
	if grain <= 0 {
		grain = n / (workers * 4)
		if grain < 1 {
			grain = 1
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < n; start += grain {
		if gctx.Err() != nil {
			break
		}
		s, e := start, start+grain
		if e > n {
			e = n
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, s, e)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
