package httpexec

import (
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// config holds the resolved client configuration.
type config struct {
	baseURL        string
	transport      http.RoundTripper
	defaultHeaders http.Header
	policy         RetryPolicy
	logger         zerolog.Logger
	debug          bool
	coalesce       bool
	breaker        *BreakerConfig
	rateLimit      *RateLimitConfig
	chaos          *ChaosConfig
	meterProvider  metric.MeterProvider
}

// Option customizes a Client at construction time.
type Option func(*config)

func newConfig(opts ...Option) *config {
	cfg := &config{
		defaultHeaders: make(http.Header),
		policy:         DefaultRetryPolicy(),
		logger:         zerolog.New(os.Stdout).With().Timestamp().Logger(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithBaseURL sets the base URL prepended to request paths.
func WithBaseURL(baseURL string) Option {
	return func(cfg *config) {
		cfg.baseURL = baseURL
	}
}

// WithTransport injects the underlying transport. Use this to supply a
// tuned http.Transport, an instrumented round tripper, or a test double.
func WithTransport(rt http.RoundTripper) Option {
	return func(cfg *config) {
		cfg.transport = rt
	}
}

// WithHeader adds a default header applied to every request. Builders
// can override it per request.
func WithHeader(key, value string) Option {
	return func(cfg *config) {
		cfg.defaultHeaders.Set(key, value)
	}
}

// WithRetryPolicy sets the client-wide default policy. Builders can
// override any field per request.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(cfg *config) {
		cfg.policy = p
	}
}

// WithLogger replaces the default stdout logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithDebug enables request/response/retry debug logging.
func WithDebug(debug bool) Option {
	return func(cfg *config) {
		cfg.debug = debug
	}
}

// WithCoalescing deduplicates concurrent identical GET requests: only
// one transport execution runs, and all callers share its Result.
func WithCoalescing() Option {
	return func(cfg *config) {
		cfg.coalesce = true
	}
}

// WithBreaker places a circuit breaker in front of every physical
// attempt.
func WithBreaker(bc BreakerConfig) Option {
	return func(cfg *config) {
		cfg.breaker = &bc
	}
}

// WithRateLimit bounds the rate of physical attempts leaving the client.
func WithRateLimit(rc RateLimitConfig) Option {
	return func(cfg *config) {
		cfg.rateLimit = &rc
	}
}

// WithChaos injects faults (latency, connection errors, stalls) into the
// transport for resilience testing. Not for production configuration.
func WithChaos(cc ChaosConfig) Option {
	return func(cfg *config) {
		cfg.chaos = &cc
	}
}

// WithMeterProvider overrides the OpenTelemetry meter provider used for
// client metrics. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		cfg.meterProvider = mp
	}
}
