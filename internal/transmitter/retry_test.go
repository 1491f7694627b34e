package transmitter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryPolicyDelayForAttempt(t *testing.T) {
	policy := DefaultRetryPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 0},
		{attempt: 1, want: 1000 * time.Millisecond},
		{attempt: 2, want: 2000 * time.Millisecond},
		{attempt: 3, want: 4000 * time.Millisecond},
		{attempt: 4, want: 8000 * time.Millisecond},
		{attempt: 5, want: 8000 * time.Millisecond},
		{attempt: 9, want: 8000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			got := policy.DelayForAttempt(tt.attempt)
			if got != tt.want {
				t.Errorf("DelayForAttempt(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetryPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		wantErr bool
	}{
		{
			name:   "defaults",
			policy: DefaultRetryPolicy(),
		},
		{
			name: "zero attempts",
			policy: RetryPolicy{
				MaxAttempts:  0,
				InitialDelay: time.Second,
				MaxDelay:     8 * time.Second,
				Multiplier:   2.0,
			},
			wantErr: true,
		},
		{
			name: "multiplier below one",
			policy: RetryPolicy{
				MaxAttempts:  5,
				InitialDelay: time.Second,
				MaxDelay:     8 * time.Second,
				Multiplier:   0.5,
			},
			wantErr: true,
		},
		{
			name: "max below initial",
			policy: RetryPolicy{
				MaxAttempts:  5,
				InitialDelay: 8 * time.Second,
				MaxDelay:     time.Second,
				Multiplier:   2.0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestRetryDoFirstAttemptSucceeds(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
	}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryDoRecoversAfterFailures(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
	}

	calls := 0
	var attempts []int
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("still down")
		}
		return nil
	}, func(attempt int, _ time.Duration) {
		attempts = append(attempts, attempt)
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(attempts) != 3 || attempts[0] != 0 || attempts[2] != 2 {
		t.Errorf("attempts = %v, want [0 1 2]", attempts)
	}
}

func TestRetryDoExhaustion(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}

	wantCause := errors.New("device unreachable")
	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return wantCause
	}, nil)

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, ErrReconnectExhausted) {
		t.Errorf("Do() = %v, want ErrReconnectExhausted", err)
	}
	if !errors.Is(err, wantCause) {
		t.Errorf("Do() = %v, want wrapped cause", err)
	}
}

func TestRetryDoContextCancellation(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Hour, // would hang without cancellation
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, func(context.Context) error {
		calls++
		return errors.New("down")
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancelled during backoff)", calls)
	}
}
