package httpexec

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"
)

// MockTransport is a scriptable http.RoundTripper for tests. Outcomes
// are consumed in sequence; when the script runs out, the last outcome
// repeats. It records every request so tests can assert on the number of
// physical attempts the executor actually made.
type MockTransport struct {
	mu       sync.Mutex
	script   []mockOutcome
	cursor   int
	requests []*http.Request
	hook     func(*http.Request)
}

type mockOutcome struct {
	status int
	body   string
	header http.Header
	err    error
	stall  bool
}

// NewMockTransport creates an empty mock. Script outcomes with Respond /
// Fail / FailConnect / Stall, in the order attempts should see them.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Respond queues a response with the given status and body.
func (m *MockTransport) Respond(status int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockOutcome{status: status, body: body})
	return m
}

// RespondHeader queues a response with headers.
func (m *MockTransport) RespondHeader(status int, body string, header http.Header) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockOutcome{status: status, body: body, header: header})
	return m
}

// Fail queues a transport error.
func (m *MockTransport) Fail(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockOutcome{err: err})
	return m
}

// FailConnect queues a connection-refused style error, n times.
func (m *MockTransport) FailConnect(n int) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.script = append(m.script, mockOutcome{err: errors.New("dial tcp: connection refused")})
	}
	return m
}

// Stall queues an attempt that never resolves: it blocks until the
// request context fires, then returns the context error.
func (m *MockTransport) Stall() *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockOutcome{stall: true})
	return m
}

// OnRequest sets a hook invoked for each attempt.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.hook

	if len(m.script) == 0 {
		m.mu.Unlock()
		return nil, errors.New("mock: no outcome scripted for " + req.Method + " " + req.URL.String())
	}
	outcome := m.script[m.cursor]
	if m.cursor < len(m.script)-1 {
		m.cursor++
	}
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	if outcome.stall {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}
	if outcome.err != nil {
		return nil, outcome.err
	}

	header := outcome.header
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode: outcome.status,
		Status:     http.StatusText(outcome.status),
		Header:     header.Clone(),
		Body:       io.NopCloser(bytes.NewBufferString(outcome.body)),
		Request:    req,
	}, nil
}

// Requests returns a copy of all recorded requests.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request{}, m.requests...)
}

// Calls returns the number of physical attempts seen.
func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reset clears the script and the recorded requests.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = nil
	m.cursor = 0
	m.requests = nil
	m.hook = nil
}
