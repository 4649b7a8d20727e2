package httpexec

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// requestIDHeader carries the per-logical-request identifier. It is set
// only when the caller has not supplied one.
const requestIDHeader = "X-Request-Id"

// Execute is the single entry point of the request executor. It drives
// one logical request: up to Policy.Retries+1 physical attempts, each
// bounded by the per-attempt timeout and by the caller's context, and
// classifies every terminal outcome into the error taxonomy. It never
// panics across its boundary and never returns a raw error; the caller
// always receives a Result.
//
// Retrying is invisible to the caller except as added latency: only the
// final outcome is observable.
func (c *Client) Execute(ctx context.Context, req *Request) Result[*Response] {
	if ctx == nil {
		ctx = context.Background()
	}
	policy := req.Policy.normalized()

	if c.coalesce && req.Method == "GET" && len(req.Body) == 0 {
		return c.executeCoalesced(ctx, req, policy)
	}
	return c.executeRequest(ctx, req, policy)
}

func (c *Client) executeRequest(ctx context.Context, req *Request, policy RetryPolicy) Result[*Response] {
	reqID := req.Header.Get(requestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
	}

	start := time.Now()
	res, attempts := c.run(ctx, req, policy, reqID)

	c.metrics.recordRequest(ctx, req, res, attempts, time.Since(start))
	c.logOutcome(req, res, reqID, attempts, time.Since(start))
	return res
}

// run is the attempt state machine: Attempting -> {Success, Retrying,
// TerminalFailure}, with Retrying looping back to Attempting.
func (c *Client) run(ctx context.Context, req *Request, policy RetryPolicy, reqID string) (Result[*Response], int) {
	span := trace.SpanFromContext(ctx)

	for attempt := 0; ; attempt++ {
		resp, cause, err := c.attempt(ctx, req, policy, reqID)

		if err == nil && resp.IsSuccess() {
			return Success(resp), attempt + 1
		}

		cls := classify(resp, err, cause)

		if cls.retryable && attempt < policy.Retries {
			delay := delayFor(attempt, policy.RetryDelay)
			c.recordRetry(ctx, span, req, cls.err, attempt, delay)
			resp.discard()

			if werr := waitFor(ctx, delay); werr != nil {
				// The caller cancelled while we were waiting to retry;
				// honor it immediately.
				return Failure[*Response](abortError(werr)), attempt + 1
			}
			continue
		}

		if cls.retryable {
			c.metrics.recordRetriesExhausted(ctx, req)
		}
		recordSpanFailure(span, cls.err)
		return Failure[*Response](cls.err), attempt + 1
	}
}

// attempt performs one physical transport invocation. It returns the
// response or transport error, plus the cancellation cause when the
// per-attempt context had fired by the time the attempt finished.
//
// The per-attempt context merges the caller's context with a fresh
// timeout context whose timer injects the fixed timeout marker as its
// cancellation cause. The timer is disarmed and the merge released on
// every exit path, so a stale timer can never fire into a later attempt.
// Releasing the merge aborts an unread net/http body stream, so any
// received body is buffered into the Response cache before this returns;
// the timeout therefore bounds the body transfer, not just the headers.
func (c *Client) attempt(ctx context.Context, req *Request, policy RetryPolicy, reqID string) (*Response, error, error) {
	timeoutCtx, timeoutCancel := context.WithCancelCause(context.Background())
	timer := time.AfterFunc(policy.Timeout, func() {
		timeoutCancel(errAttemptTimeout)
	})

	attemptCtx, release := MergeContexts(ctx, timeoutCtx)
	defer func() {
		timer.Stop()
		timeoutCancel(context.Canceled)
		release()
	}()

	httpReq, err := req.build(attemptCtx)
	if err != nil {
		return nil, nil, err
	}
	if httpReq.Header.Get(requestIDHeader) == "" {
		httpReq.Header.Set(requestIDHeader, reqID)
	}

	if c.debug {
		logRequest(c.logger, httpReq, req.operation)
	}
	attemptStart := time.Now()

	httpResp, err := c.transport.RoundTrip(httpReq)
	if err != nil {
		return nil, attemptCause(attemptCtx), err
	}

	resp := newResponse(httpResp, httpReq)
	if _, berr := resp.Bytes(); berr != nil {
		return nil, attemptCause(attemptCtx), berr
	}

	if c.debug {
		logResponse(c.logger, httpResp, time.Since(attemptStart))
	}
	return resp, attemptCause(attemptCtx), nil
}

// attemptCause returns the merged context's cancellation cause, or nil
// when it never fired.
func attemptCause(ctx context.Context) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}

// recordRetry emits the per-retry span event, metric and debug log.
func (c *Client) recordRetry(ctx context.Context, span trace.Span, req *Request, failure *Error, attempt int, delay time.Duration) {
	c.metrics.recordRetry(ctx, req, failure.Kind)

	if span.IsRecording() {
		span.AddEvent("httpexec.retry", trace.WithAttributes(
			attribute.Int("retry.attempt", attempt+1),
			attribute.Int64("retry.delay_ms", delay.Milliseconds()),
			attribute.String("retry.kind", failure.Kind.String()),
		))
	}

	if c.debug {
		c.logger.Debug().
			Str("operation", req.operation).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Str("kind", failure.Kind.String()).
			Msg("retrying request")
	}
}

func recordSpanFailure(span trace.Span, failure *Error) {
	if !span.IsRecording() {
		return
	}
	span.RecordError(failure)
	span.SetStatus(codes.Error, failure.Message)
	span.SetAttributes(attribute.String("httpexec.error_kind", failure.Kind.String()))
}

// logOutcome logs the terminal result of a logical request.
func (c *Client) logOutcome(req *Request, res Result[*Response], reqID string, attempts int, elapsed time.Duration) {
	if !c.debug {
		return
	}

	evt := c.logger.Debug().
		Str("operation", req.operation).
		Str("request_id", reqID).
		Str("method", req.Method).
		Str("url", req.URL).
		Int("attempts", attempts).
		Dur("elapsed", elapsed)

	if res.Ok() {
		evt.Int("status", res.Value().StatusCode).Msg("request succeeded")
		return
	}
	evt.Str("kind", res.Err().Kind.String()).
		Str("group", res.Err().Kind.Group().String()).
		Msg(fmt.Sprintf("request failed: %s", res.Err().Message))
}
