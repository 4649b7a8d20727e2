package httpexec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_NoRetriesByDefault(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().FailConnect(1)
	client := New(WithTransport(mt))

	res := client.Request("GetUser").Get(context.Background(), "http://example.com/users/1")

	require.False(t, res.Ok())
	assert.Equal(t, KindConnection, res.Err().Kind)
	assert.Equal(t, GroupNetwork, res.Err().Kind.Group())
	assert.Equal(t, 1, mt.Calls(), "default policy must make exactly one attempt")
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().FailConnect(2).Respond(200, `{"id":1}`)
	client := New(WithTransport(mt))

	start := time.Now()
	res := client.Request("GetUser").
		Retries(2).
		RetryDelay(20 * time.Millisecond).
		Get(context.Background(), "http://example.com/users/1")
	elapsed := time.Since(start)

	require.True(t, res.Ok())
	assert.Equal(t, 200, res.Value().StatusCode)
	assert.Equal(t, 3, mt.Calls())
	// Backoff doubles: 20ms before retry 1, 40ms before retry 2.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestExecute_RetriesExhausted(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().FailConnect(3)
	client := New(WithTransport(mt))

	res := client.Request("GetUser").
		Retries(2).
		RetryDelay(time.Millisecond).
		Get(context.Background(), "http://example.com/users/1")

	require.False(t, res.Ok())
	assert.Equal(t, KindConnection, res.Err().Kind)
	assert.Equal(t, 3, mt.Calls(), "budget is retries+1 physical attempts")
}

func TestExecute_AttemptTimeout(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().Stall()
	client := New(WithTransport(mt))

	start := time.Now()
	res := client.Request("SlowCall").
		Timeout(50 * time.Millisecond).
		Get(context.Background(), "http://example.com/slow")
	elapsed := time.Since(start)

	require.False(t, res.Ok())
	assert.Equal(t, KindTimeout, res.Err().Kind)
	assert.Equal(t, "Request timed out", res.Err().Message)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 1, mt.Calls())
}

func TestExecute_TimeoutIsRetried(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().Stall().Stall().Respond(200, "ok")
	client := New(WithTransport(mt))

	res := client.Request("SlowCall").
		Retries(2).
		RetryDelay(5 * time.Millisecond).
		Timeout(30 * time.Millisecond).
		Get(context.Background(), "http://example.com/slow")

	require.True(t, res.Ok())
	assert.Equal(t, 3, mt.Calls(), "each timed-out attempt gets a fresh timer")
}

func TestExecute_TimeoutBudgetExhausted(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().Stall()
	client := New(WithTransport(mt))

	res := client.Request("SlowCall").
		Retries(1).
		RetryDelay(5 * time.Millisecond).
		Timeout(30 * time.Millisecond).
		Get(context.Background(), "http://example.com/slow")

	require.False(t, res.Ok())
	assert.Equal(t, KindTimeout, res.Err().Kind)
	assert.Equal(t, 2, mt.Calls())
}

func TestExecute_CallerCancelIsNeverRetried(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().Stall()
	client := New(WithTransport(mt))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	res := client.Request("GetUser").
		Retries(3).
		RetryDelay(time.Millisecond).
		Timeout(5 * time.Second).
		Get(ctx, "http://example.com/users/1")
	elapsed := time.Since(start)

	require.False(t, res.Ok())
	assert.Equal(t, KindAbort, res.Err().Kind)
	assert.Equal(t, 1, mt.Calls(), "abort must not consume the retry budget")
	assert.Less(t, elapsed, time.Second, "cancellation is honored promptly")
}

func TestExecute_CallerCancelDuringBackoff(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().FailConnect(1)
	client := New(WithTransport(mt))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res := client.Request("GetUser").
		Retries(3).
		RetryDelay(500 * time.Millisecond).
		Get(ctx, "http://example.com/users/1")

	require.False(t, res.Ok())
	assert.Equal(t, KindAbort, res.Err().Kind)
	assert.Equal(t, 1, mt.Calls(), "the wait was interrupted before the next attempt")
}

func TestExecute_CancelReasonPropagates(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().Stall()
	client := New(WithTransport(mt))

	reason := errors.New("user navigated away")
	ctx, cancel := context.WithCancelCause(context.Background())
	time.AfterFunc(20*time.Millisecond, func() { cancel(reason) })

	res := client.Request("GetUser").Get(ctx, "http://example.com/users/1")

	require.False(t, res.Ok())
	assert.Equal(t, KindAbort, res.Err().Kind)
	assert.ErrorIs(t, res.Err(), reason)
}

func TestExecute_StatusKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		wantKind Kind
	}{
		{name: "given_400,_then_bad_request", status: 400, wantKind: KindBadRequest},
		{name: "given_401,_then_unauthorized", status: 401, wantKind: KindUnauthorized},
		{name: "given_403,_then_forbidden", status: 403, wantKind: KindForbidden},
		{name: "given_404,_then_not_found", status: 404, wantKind: KindNotFound},
		{name: "given_500,_then_internal_server", status: 500, wantKind: KindInternalServer},
		{name: "given_418,_then_generic_server_error", status: 418, wantKind: KindServerError},
		{name: "given_503,_then_generic_server_error", status: 503, wantKind: KindServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mt := NewMockTransport().Respond(tt.status, "nope")
			client := New(WithTransport(mt))

			res := client.Request("GetUser").
				Retries(3).
				RetryDelay(time.Millisecond).
				Get(context.Background(), "http://example.com/users/1")

			require.False(t, res.Ok())
			assert.Equal(t, tt.wantKind, res.Err().Kind)
			assert.Equal(t, GroupServer, res.Err().Kind.Group())
			assert.Equal(t, 1, mt.Calls(), "status responses are answers, not faults; never retried")

			require.NotNil(t, res.Err().Response)
			assert.Equal(t, tt.status, res.Err().Response.StatusCode)
			body, err := res.Err().Response.Text()
			require.NoError(t, err)
			assert.Equal(t, "nope", body)
		})
	}
}

func TestExecute_SuccessStatuses(t *testing.T) {
	t.Parallel()

	for _, status := range []int{200, 201, 204, 299} {
		mt := NewMockTransport().Respond(status, "")
		client := New(WithTransport(mt))

		res := client.Request("Call").Get(context.Background(), "http://example.com/")

		require.True(t, res.Ok(), "status %d is a success", status)
		assert.Nil(t, res.Err())
		assert.Equal(t, status, res.Value().StatusCode)
	}
}

func TestExecute_MixedFailuresScenario(t *testing.T) {
	t.Parallel()

	// Two connection failures, then success, against a 2-retry budget.
	mt := NewMockTransport().FailConnect(2).Respond(200, "ok")
	client := New(WithTransport(mt))

	start := time.Now()
	res := client.Request("GetUser").
		Policy(RetryPolicy{Retries: 2, RetryDelay: 100 * time.Millisecond, Timeout: 5 * time.Second}).
		Get(context.Background(), "http://example.com/users/1")
	elapsed := time.Since(start)

	require.True(t, res.Ok())
	assert.Equal(t, 3, mt.Calls())
	// 100ms + 200ms of backoff at minimum.
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
}

func TestExecute_RequestIDHeader(t *testing.T) {
	t.Parallel()

	t.Run("given_no_request_id,_then_one_is_generated_and_stable_across_attempts", func(t *testing.T) {
		t.Parallel()

		var ids []string
		mt := NewMockTransport().FailConnect(1).Respond(200, "ok")
		mt.OnRequest(func(req *http.Request) {
			ids = append(ids, req.Header.Get("X-Request-Id"))
		})
		client := New(WithTransport(mt))

		res := client.Request("GetUser").
			Retries(1).
			RetryDelay(time.Millisecond).
			Get(context.Background(), "http://example.com/users/1")

		require.True(t, res.Ok())
		require.Len(t, ids, 2)
		assert.NotEmpty(t, ids[0])
		assert.Equal(t, ids[0], ids[1])
	})

	t.Run("given_caller_request_id,_then_it_is_preserved", func(t *testing.T) {
		t.Parallel()

		var got string
		mt := NewMockTransport().Respond(200, "ok")
		mt.OnRequest(func(req *http.Request) {
			got = req.Header.Get("X-Request-Id")
		})
		client := New(WithTransport(mt))

		res := client.Request("GetUser").
			Header("X-Request-Id", "my-id").
			Get(context.Background(), "http://example.com/users/1")

		require.True(t, res.Ok())
		assert.Equal(t, "my-id", got)
	})
}

func TestExecute_NilContext(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().Respond(200, "ok")
	client := New(WithTransport(mt))

	res := client.Execute(nil, &Request{Method: "GET", URL: "http://example.com/"}) //nolint:staticcheck

	assert.True(t, res.Ok())
}

func TestExecute_BodyReplayedAcrossRetries(t *testing.T) {
	t.Parallel()

	var bodies []string
	mt := NewMockTransport().FailConnect(1).Respond(201, "")
	mt.OnRequest(func(req *http.Request) {
		data, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(data))
	})
	client := New(WithTransport(mt))

	res := client.Request("CreateUser").
		Body(map[string]string{"name": "ada"}).
		Retries(2).
		RetryDelay(time.Millisecond).
		Post(context.Background(), "http://example.com/users")

	require.True(t, res.Ok())
	assert.Equal(t, 201, res.Value().StatusCode)
	require.Len(t, bodies, 2)
	assert.Equal(t, `{"name":"ada"}`, bodies[0])
	assert.Equal(t, bodies[0], bodies[1], "each attempt replays the full body")
}

func TestExecute_AgainstLiveServer(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"up"}`))
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))

	res := client.Request("Health").Get(context.Background(), "/health")

	require.False(t, res.Ok())
	assert.Equal(t, KindServerError, res.Err().Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a 503 is terminal, not retried")

	res = client.Request("Health").Get(context.Background(), "/health")
	require.True(t, res.Ok())
	body, err := res.Value().Text()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"up"}`, body)
}

func TestExecute_BodyReadableAfterReturn(t *testing.T) {
	t.Parallel()

	// Stream the body in flushed chunks with gaps, so nothing beyond the
	// first chunk can be buffered by the time execution returns.
	const chunkSize = 16 * 1024
	const chunks = 8
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl, _ := w.(http.Flusher)
		chunk := bytes.Repeat([]byte("x"), chunkSize)
		for i := 0; i < chunks; i++ {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if fl != nil {
				fl.Flush()
			}
			time.Sleep(10 * time.Millisecond)
		}
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))

	res := client.Request("Download").Get(context.Background(), "/blob")
	require.True(t, res.Ok())

	body, err := res.Value().Bytes()
	require.NoError(t, err, "the body must survive the end of the attempt")
	assert.Len(t, body, chunks*chunkSize)

	data, err := io.ReadAll(Stream(res).Value())
	require.NoError(t, err)
	assert.Len(t, data, chunks*chunkSize)
}

func TestExecute_TimeoutCoversBodyTransfer(t *testing.T) {
	t.Parallel()

	// Headers arrive immediately; the body never does.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))

	start := time.Now()
	res := client.Request("Download").
		Timeout(50 * time.Millisecond).
		Get(context.Background(), "/blob")

	require.False(t, res.Ok())
	assert.Equal(t, KindTimeout, res.Err().Kind)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecute_CallerValuesReachTransport(t *testing.T) {
	t.Parallel()

	var got any
	mt := NewMockTransport().Respond(200, "ok")
	mt.OnRequest(func(req *http.Request) {
		got = req.Context().Value(ctxKey("tenant"))
	})
	client := New(WithTransport(mt))

	ctx := context.WithValue(context.Background(), ctxKey("tenant"), "acme")
	res := client.Request("Call").Get(ctx, "http://example.com/")

	require.True(t, res.Ok())
	assert.Equal(t, "acme", got)
}

func TestExecute_InvalidBodyFailsWithoutTransport(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().Respond(200, "ok")
	client := New(WithTransport(mt))

	res := client.Request("CreateUser").
		BodyJSON(map[string]any{"fn": func() {}}).
		Post(context.Background(), "http://example.com/users")

	require.False(t, res.Ok())
	assert.Equal(t, KindClientError, res.Err().Kind)
	assert.Equal(t, 0, mt.Calls(), "an unresolvable request never reaches the transport")
}
