// ABOUTME: This file tests error classification for the retry executor
// ABOUTME: Covers network errors, context errors and pipeline error kinds
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"litwatch/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := map[string]struct {
		err      error
		expected bool
	}{
		"nil error":                 {err: nil, expected: false},
		"context canceled":          {err: context.Canceled, expected: false},
		"wrapped context canceled":  {err: fmt.Errorf("call: %w", context.Canceled), expected: false},
		"deadline exceeded":         {err: context.DeadlineExceeded, expected: true},
		"transient taxonomy error":  {err: domain.NewEmbeddingError("op", errors.New("503"), true), expected: true},
		"permanent taxonomy error":  {err: domain.NewGenerationError("op", errors.New("401"), false), expected: false},
		"store error":               {err: domain.NewStoreError("op", errors.New("deadlock")), expected: true},
		"validation error":          {err: domain.NewValidationError("op", errors.New("empty")), expected: false},
		"connection refused":        {err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, expected: true},
		"connection reset":          {err: &net.OpError{Op: "read", Err: syscall.ECONNRESET}, expected: true},
		"plain error":               {err: errors.New("whatever"), expected: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsRetryable(tc.err))
		})
	}
}

func TestRetryableHTTPStatus(t *testing.T) {
	assert.True(t, RetryableHTTPStatus(500))
	assert.True(t, RetryableHTTPStatus(503))
	assert.True(t, RetryableHTTPStatus(599))
	assert.True(t, RetryableHTTPStatus(429))
	assert.True(t, RetryableHTTPStatus(408))
	assert.False(t, RetryableHTTPStatus(200))
	assert.False(t, RetryableHTTPStatus(400))
	assert.False(t, RetryableHTTPStatus(401))
	assert.False(t, RetryableHTTPStatus(404))
}
