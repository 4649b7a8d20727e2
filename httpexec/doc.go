// Package httpexec is an HTTP request execution engine with a fluent
// configuration front-end. It accepts a fully specified request (method,
// URL, headers, body and a per-request retry/timeout policy), executes
// it against an underlying transport, and classifies every terminal
// outcome into a typed Result.
//
// # Features
//
//   - Typed Result[T] outcomes: callers branch on success/failure and
//     inspect a flat error taxonomy instead of catching exceptions
//   - Per-attempt timeouts merged with caller cancellation; the two are
//     told apart, so an external cancel is never retried
//   - Exponential backoff retries for transient faults (timeouts and
//     connection failures), bounded by a per-request budget
//   - Response decoding to text, bytes, form, stream and (validated) JSON
//   - Circuit breaking, client-side rate limiting, request coalescing
//     and chaos injection as optional transport layers
//   - zerolog debug logging and OpenTelemetry metrics and span events
//
// # Quick Start
//
//	client := httpexec.New(
//	    httpexec.WithBaseURL("https://api.example.com"),
//	)
//
//	res := client.Request("GetUser").
//	    Path("/users/{id}").
//	    PathParam("id", userID).
//	    Retries(2).
//	    Get(ctx)
//
//	if !res.Ok() {
//	    return res.Err()
//	}
//
// Decoding composes over the execution result:
//
//	user := httpexec.ValidatedJSON[User](res)
//	if !user.Ok() && user.Err().Kind == httpexec.KindValidation {
//	    // well-formed body, wrong shape
//	}
//
// # Retry semantics
//
// A logical request performs at most Retries+1 physical attempts. Only
// two conditions are retryable: the synthetic per-attempt timeout and
// connection-level transport faults. HTTP status failures and caller
// cancellations are terminal immediately. Retry i waits
// RetryDelay * 2^i; the growth is deliberately uncapped and unjittered,
// with the attempt budget as the only bound.
//
// # Cancellation
//
// Each attempt runs under a context merged from the caller's context and
// a fresh timeout context via MergeContexts. The timeout fires with a
// fixed marker cause; any other cause classifies as Abort and is honored
// immediately, even mid-backoff and even when retry budget remains.
package httpexec
