package httpexec

import "time"

// Default values for RetryPolicy.
const (
	// DefaultRetries is the default number of retry attempts.
	// Retries are off unless asked for.
	DefaultRetries = 0

	// DefaultRetryDelay is the base delay before the first retry.
	// Subsequent retries double it.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultTimeout is the default per-attempt timeout.
	DefaultTimeout = 10 * time.Second
)

// RetryPolicy is the per-request execution policy. It is pure
// configuration: the executor snapshots it once when a logical request
// starts, so mutating a builder after execution has begun has no effect
// on the in-flight request.
//
// A logical request performs at most Retries+1 physical attempts. Each
// attempt is bounded by Timeout; each retry i waits RetryDelay * 2^i
// before the next attempt.
type RetryPolicy struct {
	// Retries is the maximum number of additional attempts after the
	// first. Zero disables retrying.
	Retries int

	// RetryDelay is the base backoff delay. Default: 500ms.
	RetryDelay time.Duration

	// Timeout bounds a single physical attempt. Default: 10s.
	Timeout time.Duration
}

// DefaultRetryPolicy returns the process-wide defaults: no retries,
// 500ms base delay, 10s per-attempt timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
		Timeout:    DefaultTimeout,
	}
}

// AggressiveRetryPolicy returns a policy for idempotent operations that
// must succeed: 5 retries with a fast 200ms base delay.
func AggressiveRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:    5,
		RetryDelay: 200 * time.Millisecond,
		Timeout:    DefaultTimeout,
	}
}

// ConservativeRetryPolicy returns a policy for expensive downstream
// services: 2 retries with a slow 1s base delay.
func ConservativeRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:    2,
		RetryDelay: 1 * time.Second,
		Timeout:    DefaultTimeout,
	}
}

// normalized fills unset durations with the defaults. A negative Retries
// is treated as zero. Retries==0 is a real value, not an unset one.
func (p RetryPolicy) normalized() RetryPolicy {
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = DefaultRetryDelay
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	return p
}
