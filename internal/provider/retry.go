package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/logging"
)

// retryPolicy bounds retries of transient infrastructure failures during
// boot and connect. Backoff is linear: the sleep before attempt n+1 is
// n times BaseDelay.
type retryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// sleep is replaceable so tests can count backoffs instead of
	// waiting them out.
	sleep func(ctx context.Context, d time.Duration) error
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		sleep:       sleepCtx,
	}
}

// Do runs fn until it succeeds, fails non-transiently, or exhausts
// MaxAttempts. Capacity and terminated classifications are not
// transient and surface immediately; they drive their own control flow
// at the call sites.
func (p retryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}
		logging.Debug("transient failure, backing off",
			"op", op, "attempt", attempt, "error", lastErr)
		if err := p.sleep(ctx, time.Duration(attempt)*p.BaseDelay); err != nil {
			return err
		}
	}
	return errors.Transient(op, lastErr)
}

// pollUntil calls check every interval until it reports done, check
// fails, or timeout elapses.
func (p retryPolicy) pollUntil(ctx context.Context, op string, timeout, interval time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Transient(op, fmt.Errorf("timed out after %s", timeout))
		}
		if err := p.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
