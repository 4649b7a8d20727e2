package httpexec

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// scope is the instrumentation scope name for OpenTelemetry.
const scope = "github.com/voyant-labs/courier-go/httpexec"

// metrics holds the metric instruments for request execution. A nil
// *metrics is valid and records nothing, so instrument-creation failures
// degrade to no metrics instead of failing client construction.
type metrics struct {
	// requestDuration measures logical request duration in seconds,
	// spanning all attempts and backoff waits.
	requestDuration metric.Float64Histogram

	// attempts counts physical transport invocations.
	attempts metric.Int64Counter

	// retries counts retry transitions, labeled with the kind that
	// triggered them.
	retries metric.Int64Counter

	// retriesExhausted counts logical requests that used their whole
	// retry budget and still failed.
	retriesExhausted metric.Int64Counter

	// outcomes counts terminal results labeled by kind ("success" for
	// the success variant).
	outcomes metric.Int64Counter
}

func newMetrics(provider metric.MeterProvider, logger zerolog.Logger) *metrics {
	meter := provider.Meter(scope)
	m := &metrics{}
	var err error

	m.requestDuration, err = meter.Float64Histogram(
		"httpexec.request.duration",
		metric.WithDescription("Duration of logical requests in seconds, including retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
		),
	)
	if err == nil {
		m.attempts, err = meter.Int64Counter(
			"httpexec.attempts",
			metric.WithDescription("Physical transport invocations"),
			metric.WithUnit("{attempt}"),
		)
	}
	if err == nil {
		m.retries, err = meter.Int64Counter(
			"httpexec.retries",
			metric.WithDescription("Retry transitions by triggering error kind"),
			metric.WithUnit("{retry}"),
		)
	}
	if err == nil {
		m.retriesExhausted, err = meter.Int64Counter(
			"httpexec.retries.exhausted",
			metric.WithDescription("Logical requests that exhausted their retry budget"),
			metric.WithUnit("{request}"),
		)
	}
	if err == nil {
		m.outcomes, err = meter.Int64Counter(
			"httpexec.outcomes",
			metric.WithDescription("Terminal results by error kind"),
			metric.WithUnit("{request}"),
		)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("metrics disabled: instrument creation failed")
		return nil
	}
	return m
}

func (m *metrics) recordRequest(ctx context.Context, req *Request, res Result[*Response], attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}

	kind := "success"
	if !res.Ok() {
		kind = res.Err().Kind.String()
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", req.operation),
		attribute.String("method", req.Method),
		attribute.String("outcome", kind),
	)

	m.requestDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.attempts.Add(ctx, int64(attempts), attrs)
	m.outcomes.Add(ctx, 1, attrs)
}

func (m *metrics) recordRetry(ctx context.Context, req *Request, kind Kind) {
	if m == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", req.operation),
		attribute.String("kind", kind.String()),
	))
}

func (m *metrics) recordRetriesExhausted(ctx context.Context, req *Request) {
	if m == nil {
		return
	}
	m.retriesExhausted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", req.operation),
	))
}
