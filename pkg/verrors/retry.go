package verrors

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the exponential backoff used to retry recoverable
// errors (§7: "Recoverable errors ... are retried with bounded exponential
// backoff and jitter under a retry policy").
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryPolicy matches the durations dittofs uses for its background
// uploader retries: fast first retry, capped growth, bounded total wait.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  30 * time.Second,
	}
}

func (p RetryPolicy) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	return backoff.WithContext(b, ctx)
}

// Retry runs fn until it succeeds, returns a non-recoverable error, or the
// policy's elapsed-time budget is exhausted. Non-recoverable errors (per
// Recoverable) are returned immediately without consuming the budget.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error
	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !Recoverable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, policy.backoff(ctx)); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
