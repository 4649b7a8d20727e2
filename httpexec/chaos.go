package httpexec

import (
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// ErrChaosInjected is the cause of a connection error injected by the
// chaos transport.
var ErrChaosInjected = errors.New("chaos: simulated connection error")

// ChaosConfig injects faults into the transport so retry, timeout and
// breaker behavior can be exercised against realistic failure patterns
// in development and testing.
type ChaosConfig struct {
	// Latency adds a fixed delay to every attempt.
	Latency time.Duration

	// LatencyJitter adds a random delay in [0, LatencyJitter) on top of
	// Latency.
	LatencyJitter time.Duration

	// ErrorRate is the probability (0.0-1.0) of failing an attempt with
	// a simulated connection error.
	ErrorRate float64

	// StallRate is the probability (0.0-1.0) of stalling an attempt
	// until its context fires, which exercises the per-attempt timeout.
	StallRate float64
}

func (c ChaosConfig) delay() time.Duration {
	d := c.Latency
	if c.LatencyJitter > 0 {
		d += rand.N(c.LatencyJitter) //nolint:gosec // jitter, not crypto
	}
	return d
}

func (c ChaosConfig) shouldInjectError() bool {
	return c.ErrorRate > 0 && rand.Float64() < c.ErrorRate //nolint:gosec
}

func (c ChaosConfig) shouldStall() bool {
	return c.StallRate > 0 && rand.Float64() < c.StallRate //nolint:gosec
}

// chaosTransport wraps an http.RoundTripper with fault injection.
type chaosTransport struct {
	next   http.RoundTripper
	config ChaosConfig
}

func newChaosTransport(next http.RoundTripper, cfg ChaosConfig) http.RoundTripper {
	return &chaosTransport{next: next, config: cfg}
}

// RoundTrip implements http.RoundTripper.
func (t *chaosTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.config.shouldStall() {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if t.config.shouldInjectError() {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: ErrChaosInjected}
	}

	if delay := t.config.delay(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return t.next.RoundTrip(req)
}
