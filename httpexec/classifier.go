package httpexec

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	gobreaker "github.com/sony/gobreaker/v2"
)

// classification is the classifier's verdict on one attempt outcome.
// retryable means the executor may resolve the failure by attempting
// again within its budget; the terminal Error is what the caller sees
// once the budget is exhausted (or immediately, if not retryable).
type classification struct {
	err       *Error
	retryable bool
}

// classify maps one attempt outcome to a taxonomy member. The outcome is
// either a received response (resp != nil), or a transport error (err),
// accompanied by the per-attempt cancellation cause when the merged
// attempt context had fired (cause != nil).
//
// Rules, in priority order:
//
//  1. Response received with a non-2xx status: mapped by status code,
//     raw response attached, never retried.
//  2. The synthetic per-attempt timeout fired: retryable; once the
//     budget is exhausted the terminal kind is Timeout.
//  3. Any other cancellation fired: Abort, carrying the cancellation
//     reason. Never retried, regardless of remaining budget — an
//     external cancellation must be honored immediately even when it
//     races with the timeout.
//  4. Connect-level transport fault: retryable; terminal kind is
//     Connection with the original cause attached.
//  5. Anything else: generic client error with the cause attached.
//
// Only rule 2 and rule 4 are retryable. The distinction between rules 2
// and 3 is load-bearing: both are cancellations of the same attempt
// context, told apart solely by the cause identity.
func classify(resp *Response, err error, cause error) classification {
	if resp != nil && !resp.IsSuccess() {
		return classification{err: statusError(resp)}
	}

	if cause != nil {
		if errors.Is(cause, errAttemptTimeout) {
			return classification{
				err:       newError(KindTimeout, timeoutMarker, nil),
				retryable: true,
			}
		}
		return classification{err: abortError(cause)}
	}

	// Backstop for a caller context that was cancelled without the
	// attempt context observing it first (the transport saw it directly).
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return classification{err: abortError(err)}
	}

	if isConnectionError(err) {
		return classification{
			err:       newError(KindConnection, "connection failed", err),
			retryable: true,
		}
	}

	return classification{err: newError(KindClientError, "request failed", err)}
}

// abortError builds the Abort failure carrying the cancellation reason.
func abortError(reason error) *Error {
	msg := "request aborted"
	if reason != nil && !errors.Is(reason, context.Canceled) {
		msg = "request aborted: " + reason.Error()
		return &Error{Kind: KindAbort, Message: msg, Cause: reason}
	}
	return &Error{Kind: KindAbort, Message: msg, Cause: reason}
}

// isConnectionError reports whether err is a "failed to connect" style
// transport fault. Checks run typed-first with a string-pattern fallback
// for errors wrapped by third-party layers.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// A rejecting circuit breaker stands in for the connection it refuses
	// to open.
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return true
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return containsConnectionPattern(err)
}

// containsConnectionPattern is the fallback for errors whose concrete
// types were lost in wrapping.
func containsConnectionPattern(err error) bool {
	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is down",
		"network unreachable",
		"network is unreachable",
		"failed to connect",
		"broken pipe",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}
