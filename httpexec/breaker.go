package httpexec

import (
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"
)

// BreakerConfig configures the circuit breaker placed in front of every
// physical attempt. While the circuit is open, attempts fail fast with a
// connection-kind error and no transport invocation.
//
// States: Closed (normal), Open (rejecting), Half-Open (probing).
type BreakerConfig struct {
	// Name labels the breaker in state-change callbacks. Defaults to
	// "httpexec".
	Name string

	// MaxRequests is the number of probe requests allowed while
	// half-open. Zero means 1.
	MaxRequests uint32

	// Interval is the cyclic period over which the closed-state failure
	// counts are cleared. Zero keeps counts indefinitely.
	Interval time.Duration

	// Timeout is how long the circuit stays open before probing.
	// Defaults to 60s when zero.
	Timeout time.Duration

	// FailureThreshold is the minimum number of requests before the
	// failure ratio can trip the circuit. Default: 10.
	FailureThreshold uint32

	// FailureRatio trips the circuit once reached (0.0-1.0).
	// Default: 0.5.
	FailureRatio float64

	// ConsecutiveFailures trips the circuit after this many sequential
	// failures. Zero disables the rule.
	ConsecutiveFailures uint32

	// Store optionally shares breaker state across processes. Nil keeps
	// the breaker in-memory.
	Store gobreaker.SharedDataStore

	// IsFailure decides which outcomes count toward tripping. Default:
	// connection faults and 5xx responses.
	IsFailure func(resp *http.Response, err error) bool

	// OnStateChange is invoked on every state transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns a local in-memory breaker: 10s count
// window, 10s open period, trip at 50% failures over 10+ requests or 5
// consecutive failures.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    10,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
	}
}

// NewRedisStore creates a shared breaker store backed by Redis, letting
// multiple client processes trip and recover together.
func NewRedisStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// defaultBreakerFailure counts connection faults and 5xx responses as
// failures. Statuses below 500 never trip the circuit: they are answers,
// not outages.
func defaultBreakerFailure(resp *http.Response, err error) bool {
	if err != nil {
		return isConnectionError(err)
	}
	return resp != nil && resp.StatusCode >= 500
}

// circuitBreaker abstracts the local and distributed gobreaker variants
// behind the one method the transport needs.
type circuitBreaker interface {
	Execute(fn func() (*http.Response, error)) (*http.Response, error)
}

// breakerTransport gates the wrapped transport through a circuit
// breaker. One breaker execution per physical attempt, so the executor's
// retries each probe the circuit separately.
type breakerTransport struct {
	next      http.RoundTripper
	breaker   circuitBreaker
	isFailure func(*http.Response, error) bool
}

func newBreakerTransport(next http.RoundTripper, cfg BreakerConfig) http.RoundTripper {
	name := cfg.Name
	if name == "" {
		name = "httpexec"
	}
	isFailure := cfg.IsFailure
	if isFailure == nil {
		isFailure = defaultBreakerFailure
	}
	failureThreshold := cfg.FailureThreshold
	if failureThreshold == 0 {
		failureThreshold = 10
	}
	failureRatio := cfg.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.5
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= failureThreshold && ratio >= failureRatio
		},
		OnStateChange: cfg.OnStateChange,
	}

	var cb circuitBreaker
	if cfg.Store != nil {
		dcb, err := gobreaker.NewDistributedCircuitBreaker[*http.Response](cfg.Store, settings)
		if err == nil {
			cb = dcb
		}
		// Store unreachable at construction time; degrade to local state.
	}
	if cb == nil {
		cb = gobreaker.NewCircuitBreaker[*http.Response](settings)
	}

	return &breakerTransport{next: next, breaker: cb, isFailure: isFailure}
}

// RoundTrip implements http.RoundTripper.
func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		return roundTripCounted(t.next, req, t.isFailure)
	})
	return unwrapBreakerFailure(resp, err)
}

// roundTripCounted invokes the wrapped transport and reshapes the
// outcome so the breaker counts exactly what IsFailure says: a failing
// response is smuggled out inside a breakerFailure error and unwrapped
// on the other side.
func roundTripCounted(next http.RoundTripper, req *http.Request, isFailure func(*http.Response, error) bool) (*http.Response, error) {
	resp, err := next.RoundTrip(req)
	if isFailure(resp, err) {
		if err != nil {
			return nil, err
		}
		return resp, &breakerFailure{resp: resp}
	}
	return resp, err
}

// breakerFailure marks a response that should count as a breaker failure
// while still being delivered to the caller.
type breakerFailure struct {
	resp *http.Response
}

func (e *breakerFailure) Error() string {
	return "upstream failure"
}

// unwrapBreakerFailure recovers the response hidden inside a breaker
// failure marker so 5xx responses reach the classifier as responses, not
// transport errors.
func unwrapBreakerFailure(resp *http.Response, err error) (*http.Response, error) {
	var bf *breakerFailure
	if errors.As(err, &bf) {
		return bf.resp, nil
	}
	return resp, err
}
