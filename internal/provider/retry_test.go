package provider

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/skybox-dev/skybox/internal/errors"
)

// testPolicy returns a retry policy whose sleeps are recorded instead of
// slept.
func testPolicy(maxAttempts int, sleeps *[]time.Duration) retryPolicy {
	return retryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   10 * time.Millisecond,
		sleep: func(_ context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
	}
}

func TestRetryDo_SucceedsAfterTransientFailures(t *testing.T) {
	var sleeps []time.Duration
	p := testPolicy(3, &sleeps)

	calls := 0
	err := p.Do(context.Background(), "unit boot", func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("dial tcp: connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %d, want exactly 2", len(sleeps))
	}
	// Linear backoff: attempt number times the base delay.
	if sleeps[0] != 10*time.Millisecond || sleeps[1] != 20*time.Millisecond {
		t.Errorf("backoff = %v, want [10ms 20ms]", sleeps)
	}
}

func TestRetryDo_RaisesAfterMaxAttempts(t *testing.T) {
	var sleeps []time.Duration
	p := testPolicy(3, &sleeps)

	calls := 0
	err := p.Do(context.Background(), "unit boot", func() error {
		calls++
		return fmt.Errorf("handshake rejected")
	})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(sleeps) != 2 {
		t.Errorf("sleeps = %d, want 2 (no sleep after the final attempt)", len(sleeps))
	}
	if errors.GetExitCode(err) != errors.ExitTransient {
		t.Errorf("exit code = %d, want %d", errors.GetExitCode(err), errors.ExitTransient)
	}
}

func TestRetryDo_NonTransientFailsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"capacity", fmt.Errorf("concurrent instance limit reached")},
		{"terminated", fmt.Errorf("unit has been terminated")},
		{"plain", fmt.Errorf("invalid volume slug")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sleeps []time.Duration
			p := testPolicy(3, &sleeps)

			calls := 0
			err := p.Do(context.Background(), "unit boot", func() error {
				calls++
				return tt.err
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1 (no retry)", calls)
			}
			if len(sleeps) != 0 {
				t.Errorf("sleeps = %d, want 0", len(sleeps))
			}
			if !errors.Is(err, tt.err) && err != tt.err {
				t.Errorf("error = %v, want original %v", err, tt.err)
			}
		})
	}
}

func TestRetryDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := defaultRetryPolicy()
	calls := 0
	err := p.Do(ctx, "unit boot", func() error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestPollUntil(t *testing.T) {
	var sleeps []time.Duration
	p := testPolicy(3, &sleeps)

	checks := 0
	err := p.pollUntil(context.Background(), "volume detach", time.Minute, 10*time.Millisecond, func() (bool, error) {
		checks++
		return checks == 3, nil
	})
	if err != nil {
		t.Fatalf("pollUntil: %v", err)
	}
	if checks != 3 {
		t.Errorf("checks = %d, want 3", checks)
	}
	if len(sleeps) != 2 {
		t.Errorf("sleeps = %d, want 2", len(sleeps))
	}
}

func TestPollUntil_CheckError(t *testing.T) {
	var sleeps []time.Duration
	p := testPolicy(3, &sleeps)

	wantErr := fmt.Errorf("volume lookup failed")
	err := p.pollUntil(context.Background(), "volume detach", time.Minute, time.Millisecond, func() (bool, error) {
		return false, wantErr
	})
	if !errors.Is(err, wantErr) && err != wantErr {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
}
