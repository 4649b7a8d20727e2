package httpexec

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by the transport chain when a request is
// rejected by the client-side rate limiter in fail-fast mode.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig bounds the rate of physical attempts leaving the
// client. The limit applies per attempt, so retries consume tokens too.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained attempt rate.
	RequestsPerSecond float64

	// Burst is the number of attempts allowed to exceed the sustained
	// rate briefly.
	Burst int

	// WaitOnLimit selects behavior at the limit: wait for a token
	// (respecting the attempt context) or fail fast with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig returns 100 attempts per second with a burst
// of 10, waiting at the limit.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// rateLimitTransport implements http.RoundTripper with a token bucket.
type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	wait    bool
}

func newRateLimitTransport(next http.RoundTripper, cfg RateLimitConfig) http.RoundTripper {
	if cfg.RequestsPerSecond <= 0 {
		return next
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &rateLimitTransport{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		wait:    cfg.WaitOnLimit,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.wait {
		if err := t.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, ErrRateLimited
		}
	} else if !t.limiter.Allow() {
		return nil, ErrRateLimited
	}

	return t.next.RoundTrip(req)
}
