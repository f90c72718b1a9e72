package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWaitTimeout is returned by WaitUntil when the condition never held.
var ErrWaitTimeout = errors.New("condition not met before timeout")

const defaultPollInterval = 250 * time.Millisecond

// Condition is polled by WaitUntil. Errors are treated as "not yet":
// element lookups fail transiently while a page is still rendering.
type Condition func(ctx context.Context) (bool, error)

// WaitUntil polls cond every interval until it reports true, timeout
// elapses, or ctx is cancelled. The last condition error, if any, is
// attached to the timeout error.
func WaitUntil(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(waitCtx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if lastErr != nil {
				return fmt.Errorf("%w: %v", ErrWaitTimeout, lastErr)
			}
			return ErrWaitTimeout
		case <-ticker.C:
		}
	}
}
