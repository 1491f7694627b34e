package transmitter

import (
	"context"
	"fmt"
	"time"
)

// Default retry policy values for reconnection.
const (
	defaultRetryAttempts   = 5
	defaultRetryInitial    = 1000 * time.Millisecond
	defaultRetryMax        = 8000 * time.Millisecond
	defaultRetryMultiplier = 2.0
)

// RetryPolicy describes bounded exponential backoff.
//
// The policy is a pure value: DelayForAttempt has no side effects and
// no clock dependency, which keeps retry timing testable.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts (not retries after
	// the first). Must be at least 1.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration

	// Multiplier is the backoff growth factor per attempt. Must be >= 1.
	Multiplier float64
}

// DefaultRetryPolicy returns the reconnection policy used when none is
// configured: 5 attempts, 1s initial delay, 8s cap, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  defaultRetryAttempts,
		InitialDelay: defaultRetryInitial,
		MaxDelay:     defaultRetryMax,
		Multiplier:   defaultRetryMultiplier,
	}
}

// Validate checks the policy for usable values.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("retry policy: initial delay must not be negative, got %v", p.InitialDelay)
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("retry policy: max delay %v is below initial delay %v", p.MaxDelay, p.InitialDelay)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("retry policy: multiplier must be at least 1, got %g", p.Multiplier)
	}
	return nil
}

// DelayForAttempt returns the delay to wait before attempt number
// attempt. Attempt 0 is immediate; attempt k (k > 0) waits
// InitialDelay * Multiplier^(k-1), capped at MaxDelay.
func (p RetryPolicy) DelayForAttempt(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}

	d := time.Duration(delay)
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping DelayForAttempt between
// attempts. onAttempt, when non-nil, is invoked before each attempt
// with the attempt number (0-based) and the delay that was applied.
//
// The first nil return from fn wins. Context cancellation aborts the
// wait and returns ctx.Err(). After exhaustion the last error is
// returned wrapped in ErrReconnectExhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error, onAttempt func(attempt int, delay time.Duration)) error {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		delay := p.DelayForAttempt(attempt)
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if onAttempt != nil {
			onAttempt(attempt, delay)
		}

		if err := fn(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("%w: %d attempts: %w", ErrReconnectExhausted, p.MaxAttempts, lastErr)
}
