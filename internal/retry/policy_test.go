// ABOUTME: This file tests the retry mechanism with exponential backoff and jitter
// ABOUTME: Verifies attempt budgets, delay growth and context cancellation
package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"litwatch/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Delay(t *testing.T) {
	policy := &Policy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    1 * time.Second,
		Multiplier:  2.0,
		Jitter:      false,
	}

	tests := map[string]struct {
		attempt  int
		expected time.Duration
	}{
		"zeroth attempt":            {attempt: 0, expected: 0},
		"first retry":               {attempt: 1, expected: 100 * time.Millisecond},
		"second retry":              {attempt: 2, expected: 200 * time.Millisecond},
		"third retry":               {attempt: 3, expected: 400 * time.Millisecond},
		"fourth retry":              {attempt: 4, expected: 800 * time.Millisecond},
		"fifth retry (capped)":      {attempt: 5, expected: 1 * time.Second},
		"excessive retry (capped)":  {attempt: 10, expected: 1 * time.Second},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, policy.Delay(tc.attempt))
		})
	}
}

func TestPolicy_DelayWithJitter(t *testing.T) {
	policy := NewPolicy(3, 100*time.Millisecond)

	// Second attempt doubles the base; jitter keeps the result within
	// 50%..100% of that.
	for i := 0; i < 20; i++ {
		delay := policy.Delay(2)
		assert.GreaterOrEqual(t, delay, 100*time.Millisecond)
		assert.LessOrEqual(t, delay, 200*time.Millisecond)
	}
}

func TestExecutor_Execute_Success(t *testing.T) {
	executor := NewExecutor(NewPolicy(3, time.Millisecond))

	calls := 0
	err := executor.Execute(context.Background(), func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecutor_Execute_RetriesTransientErrors(t *testing.T) {
	executor := NewExecutor(NewPolicy(3, time.Millisecond))

	calls := 0
	err := executor.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return domain.NewGenerationError("test", errors.New("status 503"), true)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecutor_Execute_PermanentErrorFailsFast(t *testing.T) {
	executor := NewExecutor(NewPolicy(3, time.Millisecond))

	permanent := domain.NewGenerationError("test", errors.New("bad request"), false)
	calls := 0
	err := executor.Execute(context.Background(), func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestExecutor_Execute_ExhaustsAttempts(t *testing.T) {
	executor := NewExecutor(NewPolicy(3, time.Millisecond))

	transient := domain.NewEmbeddingError("test", errors.New("timeout"), true)
	calls := 0
	err := executor.Execute(context.Background(), func() error {
		calls++
		return transient
	})

	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestExecutor_Execute_CancelledContext(t *testing.T) {
	executor := NewExecutor(NewPolicy(3, time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := executor.Execute(ctx, func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestExecutor_Execute_CancelledDuringDelay(t *testing.T) {
	executor := NewExecutor(NewPolicy(3, 5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := executor.Execute(ctx, func() error {
		calls++
		return domain.NewEmbeddingError("test", errors.New("timeout"), true)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
