// Package flight runs deduplicated work that outlives any single caller.
package flight

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Do runs fn at most once per key among concurrent callers. fn gets a
// context detached from every caller's cancellation and bounded by bound
// (no bound when bound <= 0). Each caller stops waiting when its own ctx is
// done; the shared run continues for the others.
func Do[T any](ctx context.Context, g *singleflight.Group, key string, bound time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ch := g.DoChan(key, func() (any, error) {
		runCtx := context.WithoutCancel(ctx)
		if bound > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, bound)
			defer cancel()
		}
		return fn(runCtx)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
