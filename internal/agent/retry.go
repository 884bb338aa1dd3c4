package agent

import (
	"context"
	"time"
)

// RetryDecision represents the decision after evaluating a failure.
type RetryDecision int

const (
	// Retry indicates the call should be attempted again.
	Retry RetryDecision = iota
	// Abort indicates the failure is final.
	Abort
)

// String returns a human-readable representation of the retry decision.
func (d RetryDecision) String() string {
	switch d {
	case Retry:
		return "retry"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// RetryPolicy bounds how often a single task's backend call is attempted.
// The zero value disables retries.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per task, including the first.
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles per attempt.
	Backoff time.Duration
}

// NoRetry is the default policy: one attempt, no retries.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Attempts returns the effective attempt limit (at least 1).
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Decide evaluates a failure on the given 1-indexed attempt.
// Only retryable backend errors are retried, and never past MaxAttempts.
func (p RetryPolicy) Decide(attempt int, err error) RetryDecision {
	if attempt >= p.Attempts() || !IsRetryable(err) {
		return Abort
	}
	return Retry
}

// Wait sleeps for the backoff preceding the given 1-indexed retry attempt.
// Returns ctx.Err() if the context ends first.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	if p.Backoff <= 0 {
		return ctx.Err()
	}
	delay := p.Backoff
	for i := 2; i < attempt; i++ {
		delay *= 2
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
