// ABOUTME: This file classifies errors as retryable or permanent
// ABOUTME: Transient network, timeout and rate-limit failures are retried
package retry

import (
	"context"
	"errors"
	"net"
	"syscall"

	"litwatch/internal/domain"
)

// IsRetryable determines whether an error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation is caller initiated, never retryable.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Taxonomy errors carry an explicit transient flag.
	var pe *domain.PipelineError
	if errors.As(err, &pe) {
		return pe.Transient
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errno, ok := opErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
				return true
			}
		}
		if opErr.Timeout() {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// RetryableHTTPStatus reports whether an HTTP status code indicates a
// transient condition.
func RetryableHTTPStatus(status int) bool {
	switch {
	case status >= 500 && status <= 599:
		return true
	case status == 408:
		return true
	case status == 429:
		return true
	default:
		return false
	}
}
