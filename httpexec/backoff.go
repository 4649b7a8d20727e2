package httpexec

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Ensure the scheduler conforms to the backoff.BackOff interface so it
// can be handed to code composed around the cenkalti/backoff ecosystem.
var _ backoff.BackOff = (*ExponentialBackOff)(nil)

// ExponentialBackOff yields the executor's retry schedule:
// BaseDelay * 2^attempt, with no jitter and no upper cap. Growth is
// unbounded on purpose; the number of attempts is bounded by the retry
// budget, not by a delay ceiling, and callers may depend on the long-tail
// spacing. Adding a cap or jitter is a behavioral change, not a fix.
type ExponentialBackOff struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	attempt int
}

// Reset rewinds the schedule to the first retry.
func (b *ExponentialBackOff) Reset() {
	b.attempt = 0
}

// NextBackOff returns the next delay in the schedule and advances it.
func (b *ExponentialBackOff) NextBackOff() time.Duration {
	d := delayFor(b.attempt, b.BaseDelay)
	b.attempt++
	return d
}

// delayFor computes base * 2^attempt. attempt is the 0-based count of
// retries already performed.
func delayFor(attempt int, base time.Duration) time.Duration {
	return base << attempt
}

// waitFor suspends the calling goroutine for d without blocking other
// logical requests. It returns early with the context's cause if ctx is
// cancelled during the wait.
func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
