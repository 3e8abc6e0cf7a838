package util

import (
	"context"
	"errors"
	"time"
)

// RetryParams configures RetryWithContext.
//
// MaxTries <= 0 means a single attempt. Retryable decides whether an error
// is worth another attempt; nil treats every error as retryable. Backoff is
// the delay before the second attempt and doubles after every failure.
type RetryParams struct {
	MaxTries  int
	Backoff   time.Duration
	Retryable func(error) bool
}

// RetryWithContext calls fn until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is done. Context errors are never retried.
func RetryWithContext[T any](ctx context.Context, params RetryParams, fn func(context.Context) (T, error)) (T, error) {
	maxTries := params.MaxTries
	if maxTries <= 0 {
		maxTries = 1
	}

	var zero T
	var lastErr error
	backoff := params.Backoff
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
		if params.Retryable != nil && !params.Retryable(err) {
			return zero, err
		}
		if i == maxTries-1 || backoff <= 0 {
			continue
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return zero, lastErr
}

// RetryErrWithContext is RetryWithContext for functions without a result.
func RetryErrWithContext(ctx context.Context, params RetryParams, fn func(context.Context) error) error {
	_, err := RetryWithContext(ctx, params, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
