package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks a failure as transient. The registry client wraps
// whoami transport errors and 5xx responses with it so that [Retry] probes
// the registry again instead of failing credential verification outright.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry runs fn until it succeeds, fails with a non-transient error, or
// attempts are exhausted. Only errors wrapped in [RetryableError] trigger
// another attempt; a rejected credential must surface immediately, not be
// hammered against the registry. The wait starts at delay and doubles
// before each subsequent attempt. Cancelling ctx during a wait aborts
// with ctx.Err().
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	for {
		err := fn()
		if err == nil {
			return nil
		}
		var transient *RetryableError
		if !errors.As(err, &transient) {
			return err
		}

		attempts--
		if attempts == 0 {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

// RetryWithBackoff runs fn with the schedule used for whoami probes:
// three attempts with a one second initial delay, bounding a flaky
// verification at roughly three seconds of waiting.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, 3, time.Second, fn)
}
