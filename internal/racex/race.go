// Package racex races an operation against a deadline. Unlike a context
// timeout, the losing operation is NOT cancelled: it may still complete
// later, but its result is discarded. This mirrors how the UI treats slow
// auth calls — give up on waiting, keep rendering, ignore the stragglers.
package racex

import (
	"context"
	"errors"
	"time"
)

// ErrDeadline is returned when the deadline elapses strictly before the
// operation settles.
var ErrDeadline = errors.New("operation deadline exceeded")

type outcome[T any] struct {
	value T
	err   error
}

// Race runs op and delivers whichever settles first: op's own result/error,
// ErrDeadline if d elapses, or ctx.Err() if the caller's context ends.
//
// The operation receives the caller's ctx unchanged — expiry of the race
// deadline does not cancel it. The result channel is buffered so a late
// completion never leaks a goroutine.
func Race[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	done := make(chan outcome[T], 1)

	go func() {
		v, err := op(ctx)
		done <- outcome[T]{value: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out.value, out.err
	case <-timer.C:
		return zero, ErrDeadline
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
