// Package retryx bounds the "client not ready yet" window between adapter
// construction and first use. Only readiness failures retry; anything else
// (bad credentials, network faults) propagates immediately.
package retryx

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/taskmith/authkit/internal/backend"
)

// ErrServiceUnavailable is the terminal outcome once the attempt budget is
// spent without the backend ever becoming ready.
var ErrServiceUnavailable = errors.New("service unavailable")

// Controller wraps a bounded constant-delay retry loop around a readiness
// check. The attempt counter is observable for tests and diagnostics; it
// only moves forward and resets to zero on the first successful check.
type Controller struct {
	maxAttempts int
	delay       time.Duration
	attempts    atomic.Int64
}

func New(maxAttempts int, delay time.Duration) *Controller {
	return &Controller{maxAttempts: maxAttempts, delay: delay}
}

// Attempts reports how many readiness retries have happened since the last
// successful check.
func (c *Controller) Attempts() int {
	return int(c.attempts.Load())
}

// AwaitReady polls check until it succeeds, fails with a non-readiness
// error, or the attempt budget runs out. A budget of n means n total calls
// to check with the configured delay between them.
func (c *Controller) AwaitReady(ctx context.Context, check func(context.Context) error) error {
	if c.maxAttempts < 1 {
		return fmt.Errorf("%w: no attempts allowed", ErrServiceUnavailable)
	}

	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1), retry.NewConstant(c.delay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := check(ctx); err != nil {
			if errors.Is(err, backend.ErrClientNotReady) {
				c.attempts.Add(1)
				return retry.RetryableError(err)
			}
			return err
		}
		c.attempts.Store(0)
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, backend.ErrClientNotReady) {
		return fmt.Errorf("%w: backend never became ready after %d attempts", ErrServiceUnavailable, c.maxAttempts)
	}
	return err
}

// Do waits for readiness and then runs op once. The op itself is never
// retried here — per-call deadlines and the caller's own policy govern it.
func Do[T any](ctx context.Context, c *Controller, check func(context.Context) error, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := c.AwaitReady(ctx, check); err != nil {
		return zero, err
	}
	return op(ctx)
}
