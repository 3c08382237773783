// ABOUTME: This file implements exponential backoff retry mechanism with jitter
// ABOUTME: Provides resilient error handling for LLM, embedding and feed calls
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy defines backoff behavior for failed collaborator calls. One
// policy instance is shared by every network-bound call site so the
// whole pipeline degrades uniformly.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool
}

// NewPolicy creates a policy with the default exponential schedule.
func NewPolicy(maxAttempts int, baseDelay time.Duration) *Policy {
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// Delay returns the wait before the given attempt's successor.
// Attempt numbering starts at 1.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}

	if p.Jitter {
		// Spread between 50% and 100% of the computed delay.
		half := float64(delay) * 0.5
		delay = time.Duration(half + rand.Float64()*half)
	}

	return delay
}

// Executor runs operations under a policy.
type Executor struct {
	policy *Policy
}

// NewExecutor creates an executor with the given policy.
func NewExecutor(policy *Policy) *Executor {
	return &Executor{policy: policy}
}

// Execute runs operation until it succeeds, a permanent error occurs,
// attempts are exhausted, or ctx is done. The last error is returned
// unwrapped so callers keep its taxonomy.
func (e *Executor) Execute(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == e.policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled during retry delay: %w", ctx.Err())
		case <-time.After(e.policy.Delay(attempt)):
		}
	}

	return lastErr
}
