package httpexec

import (
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Client executes HTTP requests with per-request retry, timeout and
// cancellation policy, classifying every terminal outcome into a typed
// Result. Requests are assembled through the fluent builder returned by
// Request().
//
//	client := httpexec.New(
//	    httpexec.WithBaseURL("https://api.example.com"),
//	    httpexec.WithRetryPolicy(httpexec.AggressiveRetryPolicy()),
//	)
//
//	res := client.Request("GetUsers").Get(ctx, "/users")
//
// Concurrent logical requests are independent: each owns its own
// descriptor, policy snapshot, timer and context graph. The Client itself
// holds only read-only configuration and is safe for concurrent use.
type Client struct {
	transport      http.RoundTripper
	baseURL        string
	defaultHeaders http.Header
	policy         RetryPolicy
	logger         zerolog.Logger
	debug          bool
	coalesce       bool
	metrics        *metrics
	flights        singleflight.Group
}

// New creates a Client from functional options. The underlying transport
// defaults to http.DefaultTransport; connection pooling, TLS and proxying
// stay delegated to it.
func New(opts ...Option) *Client {
	cfg := newConfig(opts...)

	transport := cfg.transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.chaos != nil {
		transport = newChaosTransport(transport, *cfg.chaos)
	}
	if cfg.rateLimit != nil {
		transport = newRateLimitTransport(transport, *cfg.rateLimit)
	}
	if cfg.breaker != nil {
		transport = newBreakerTransport(transport, *cfg.breaker)
	}

	return &Client{
		transport:      transport,
		baseURL:        cfg.baseURL,
		defaultHeaders: cfg.defaultHeaders,
		policy:         cfg.policy,
		logger:         cfg.logger,
		debug:          cfg.debug,
		coalesce:       cfg.coalesce,
		metrics:        newMetrics(cfg.meterProvider, cfg.logger),
	}
}

// Request starts a fluent builder for the named operation. The operation
// name labels logs, span events and metrics; it carries no wire meaning.
func (c *Client) Request(operationName string) *RequestBuilder {
	return &RequestBuilder{
		client:        c,
		operationName: operationName,
		headers:       make(http.Header),
		pathParams:    make(map[string]string),
		policy:        c.policy,
	}
}

// Transport returns the assembled http.RoundTripper chain for advanced
// use, e.g. handing it to a library that wants raw transport access.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}
