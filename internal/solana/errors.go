package solana

import (
	"errors"
	"fmt"
)

// Provider error codes observed on public RPC nodes.
const (
	// rpcCodeRateLimited is returned by some providers instead of HTTP 429.
	rpcCodeRateLimited = -32005
	// rpcCodeDeprioritized signals a scan was rejected as too broad and
	// must be reissued in paginated form, not retried verbatim.
	rpcCodeDeprioritized = -32010
)

// RetryableError wraps a transient provider failure (HTTP 429, provider
// rate-limit code, network error). The endpoint pool retries these per its
// policy; they never reach callers directly.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err represents a transient provider failure.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// DeprioritizedError is the provider signal that a bulk query is too broad.
// It is not retryable at this call; the caller must switch strategy.
type DeprioritizedError struct {
	Code    int
	Message string
}

func (e *DeprioritizedError) Error() string {
	return fmt.Sprintf("scan deprioritized by provider (%d): %s", e.Code, e.Message)
}

// IsDeprioritized reports whether err is a deprioritized-scan rejection.
func IsDeprioritized(err error) bool {
	var de *DeprioritizedError
	return errors.As(err, &de)
}

// ExhaustedError is returned after every endpoint in the pool has been
// tried to its attempt limit. Cause is the last failure observed.
type ExhaustedError struct {
	Endpoints int
	Cause     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d endpoints exhausted: %v", e.Endpoints, e.Cause)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// IsExhausted reports whether err means the whole pool was exhausted.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
