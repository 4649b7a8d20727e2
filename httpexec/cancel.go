package httpexec

import (
	"context"
	"sync"
)

// MergeContexts combines any number of cancellation sources into one
// derived context. The derived context is a child of the first source, so
// its values (trace spans, auth material) flow through; it is cancelled
// as soon as any source is cancelled, with that source's cause
// (context.Cause). A source that is already cancelled at merge time
// cancels the derived context immediately.
//
// The returned release function must be called once the merged context is
// no longer needed; it detaches all remaining subscriptions and cancels
// the derived context with context.Canceled if no source fired first.
// Subscriptions to the other sources are also released as soon as the
// first source fires, so repeated merges do not accumulate listeners.
//
// With zero sources the derived context never fires spontaneously; with
// one source it behaves as a pass-through of that source.
//
// If two sources fire at the same instant, the cause is whichever firing
// the merge observes first. The ordering between simultaneous firings is
// non-deterministic and callers must not rely on it.
func MergeContexts(sources ...context.Context) (context.Context, context.CancelFunc) {
	parent := context.Background()
	rest := sources
	if len(sources) > 0 && sources[0] != nil {
		parent = sources[0]
		rest = sources[1:]
	}

	ctx, cancel := context.WithCancelCause(parent)
	m := &contextMerge{cancel: cancel}

	// The parent cancels the derived context through the context tree
	// itself; subscribing to the derived context keeps the release
	// guarantee uniform across every firing path.
	m.listen(ctx)

	for _, src := range rest {
		if src == nil {
			continue
		}
		if src.Err() != nil {
			m.fire(context.Cause(src))
			break
		}
		m.listen(src)
	}

	return ctx, func() { m.fire(context.Canceled) }
}

// contextMerge tracks the subscriptions backing one merged context and
// guarantees first-fire-wins with deterministic listener release.
type contextMerge struct {
	mu     sync.Mutex
	fired  bool
	cancel context.CancelCauseFunc
	stops  []func() bool
}

func (m *contextMerge) listen(src context.Context) {
	stop := context.AfterFunc(src, func() {
		m.fire(context.Cause(src))
	})

	m.mu.Lock()
	if m.fired {
		// A sibling (or this source itself) fired while we were
		// subscribing; the new subscription is already stale.
		m.mu.Unlock()
		stop()
		return
	}
	m.stops = append(m.stops, stop)
	m.mu.Unlock()
}

// fire cancels the merged context with the given cause exactly once and
// releases every registered subscription. Later calls are no-ops.
func (m *contextMerge) fire(cause error) {
	m.mu.Lock()
	if m.fired {
		m.mu.Unlock()
		return
	}
	m.fired = true
	stops := m.stops
	m.stops = nil
	m.mu.Unlock()

	m.cancel(cause)
	for _, stop := range stops {
		stop()
	}
}
