package telegram

import (
	"fmt"
	"time"
)

// RateLimitError indicates the Bot API asked us to slow down.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s: %s", e.RetryAfter, e.Message)
}

// IsRetryable returns true, the send can be retried after RetryAfter.
func (e *RateLimitError) IsRetryable() bool {
	return true
}

// PermanentError indicates a failure that retrying cannot fix: blocked bot,
// unknown chat, invalid token, malformed request.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsRetryable returns false.
func (e *PermanentError) IsRetryable() bool {
	return false
}

// RetryableError indicates a transient failure (5xx, network).
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsRetryable returns true.
func (e *RetryableError) IsRetryable() bool {
	return true
}

// IsRetryable checks if an error advertises itself as retryable.
func IsRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(retryable); ok {
		return r.IsRetryable()
	}
	return false
}

// GetRetryAfter returns the wait hint from a rate limit error, zero
// otherwise.
func GetRetryAfter(err error) time.Duration {
	if rl, ok := err.(*RateLimitError); ok {
		return rl.RetryAfter
	}
	return 0
}
