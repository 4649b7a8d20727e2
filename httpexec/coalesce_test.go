package httpexec

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesceKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		method1  string
		url1     string
		method2  string
		url2     string
		wantSame bool
	}{
		{
			name:     "given_identical_requests,_then_same_key",
			method1:  "GET",
			url1:     "https://example.com/users/123",
			method2:  "GET",
			url2:     "https://example.com/users/123",
			wantSame: true,
		},
		{
			name:     "given_different_methods,_then_different_key",
			method1:  "GET",
			url1:     "https://example.com/users/123",
			method2:  "POST",
			url2:     "https://example.com/users/123",
			wantSame: false,
		},
		{
			name:     "given_different_paths,_then_different_key",
			method1:  "GET",
			url1:     "https://example.com/users/123",
			method2:  "GET",
			url2:     "https://example.com/users/456",
			wantSame: false,
		},
		{
			name:     "given_reordered_query_params,_then_same_key",
			method1:  "GET",
			url1:     "https://example.com/search?a=1&b=2",
			method2:  "GET",
			url2:     "https://example.com/search?b=2&a=1",
			wantSame: true,
		},
		{
			name:     "given_different_query_values,_then_different_key",
			method1:  "GET",
			url1:     "https://example.com/search?q=go",
			method2:  "GET",
			url2:     "https://example.com/search?q=rust",
			wantSame: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			key1 := coalesceKey(tt.method1, tt.url1)
			key2 := coalesceKey(tt.method2, tt.url2)

			if tt.wantSame {
				assert.Equal(t, key1, key2)
			} else {
				assert.NotEqual(t, key1, key2)
			}
		})
	}
}

func TestCoalescing_ConcurrentIdenticalGETs(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	mt := NewMockTransport().Respond(200, `{"id":1}`)
	mt.OnRequest(func(*http.Request) { <-release })
	client := New(WithTransport(mt), WithCoalescing())

	const callers = 8
	results := make([]Result[*Response], callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = client.Request("GetUser").Get(context.Background(), "http://example.com/users/1")
		}(i)
	}

	// Give all callers time to pile onto the same flight, then let the
	// single transport execution finish.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, mt.Calls(), "identical concurrent GETs share one execution")
	for i, res := range results {
		require.True(t, res.Ok(), "caller %d", i)
		body, err := res.Value().Text()
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":1}`, body)
	}
}

func TestCoalescing_OnlyAppliesToGET(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().Respond(200, "ok")
	client := New(WithTransport(mt), WithCoalescing())

	res := client.Request("CreateUser").
		Body("payload").
		Post(context.Background(), "http://example.com/users")

	require.True(t, res.Ok())
	assert.Equal(t, 1, mt.Calls())
}

func TestCoalescing_DisabledByDefault(t *testing.T) {
	t.Parallel()

	mt := NewMockTransport().Respond(200, "a").Respond(200, "b")
	client := New(WithTransport(mt))

	res1 := client.Request("Call").Get(context.Background(), "http://example.com/")
	res2 := client.Request("Call").Get(context.Background(), "http://example.com/")

	require.True(t, res1.Ok())
	require.True(t, res2.Ok())
	assert.Equal(t, 2, mt.Calls())
}
