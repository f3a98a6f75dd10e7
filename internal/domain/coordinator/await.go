package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// await runs fn off the event loop and gives up when ctx ends. A result that
// arrives after the caller gave up is handed to late, if set, so it can be
// cleaned up.
func await[T any](ctx context.Context, fn func(context.Context) (T, error), late func(T)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		if late != nil {
			go func() {
				if r := <-ch; r.err == nil {
					late(r.v)
				}
			}()
		}
		var zero T
		return zero, ctx.Err()
	}
}

func timeoutError(op string, limit time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrTimeout, op, limit)
	}
	return err
}
