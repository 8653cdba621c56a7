package resilience

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// SingleFlight deduplicates concurrent calls for the same key. Waiters give up
// when their own context ends; the shared call keeps running for the others.
type SingleFlight[T any] struct {
	group singleflight.Group
}

func (g *SingleFlight[T]) Do(ctx context.Context, key string, fn func() (T, error)) (T, bool, error) {
	ch := g.group.DoChan(key, func() (any, error) {
		return fn()
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Shared, res.Err
		}
		value, _ := res.Val.(T)
		return value, res.Shared, nil
	}
}

// Forget drops an in-flight key so the next call starts a fresh execution.
func (g *SingleFlight[T]) Forget(key string) {
	g.group.Forget(key)
}
