package crank

import (
	"context"
	"errors"
	"time"

	"twammEngine/internal/errs"
)

const maxBackoff = 30 * time.Second

// retryPolicy re-runs a crank while it fails with a policy error, doubling
// the wait each time up to maxBackoff.
type retryPolicy struct {
	retries int
	base    time.Duration
}

func newRetryPolicy(retries int, base time.Duration) retryPolicy {
	if retries < 0 {
		retries = 0
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return retryPolicy{retries: retries, base: base}
}

// permanent reports errors that no amount of waiting fixes within a round.
func permanent(err error) bool {
	return !errs.Retryable(err) || errors.Is(err, errs.ErrNothingToSettle)
}

func (p retryPolicy) do(ctx context.Context, fn func(context.Context) error) error {
	wait := p.base
	var err error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			wait = min(wait*2, maxBackoff)
		}
		if err = fn(ctx); err == nil || permanent(err) {
			return err
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
