package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy defines how a stage retries transient failures.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool
}

// DefaultPolicy returns the policy used when config does not override it.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

// Do executes fn up to MaxAttempts times. retryable decides whether a given
// error is worth another attempt; a nil predicate retries everything. The
// last error is returned once attempts are exhausted or a non-retryable error
// is seen.
func Do(ctx context.Context, policy Policy, retryable func(error) bool, fn func() error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoffFor(policy, attempt)):
		}
	}

	return fmt.Errorf("attempts exhausted (%d): %w", policy.MaxAttempts, lastErr)
}

// backoffFor computes the sleep before the next attempt. attempt is 1-based.
func backoffFor(policy Policy, attempt int) time.Duration {
	backoff := float64(policy.InitialBackoff) * math.Pow(policy.BackoffFactor, float64(attempt-1))
	if backoff > float64(policy.MaxBackoff) {
		backoff = float64(policy.MaxBackoff)
	}

	duration := time.Duration(backoff)

	// Jitter prevents synchronized hammering of a recovering provider.
	if policy.Jitter {
		duration += time.Duration(float64(duration) * 0.1 * (2*rand.Float64() - 1))
	}

	return duration
}
