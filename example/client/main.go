// Command client demonstrates the courier-go HTTP execution engine
// against a local mock API: retries with exponential backoff, per-attempt
// timeouts, typed error handling and JSON decoding with validation.
package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/voyant-labs/courier-go/httpexec"
)

type user struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	server := newFlakyServer()
	defer server.Close()

	client := httpexec.New(
		httpexec.WithBaseURL(server.URL),
		httpexec.WithHeader("Accept", "application/json"),
		httpexec.WithRetryPolicy(httpexec.RetryPolicy{
			Retries:    3,
			RetryDelay: 100 * time.Millisecond,
			Timeout:    500 * time.Millisecond,
		}),
		httpexec.WithLogger(logger),
		httpexec.WithDebug(true),
		httpexec.WithCoalescing(),
		httpexec.WithBreaker(httpexec.DefaultBreakerConfig()),
	)

	ctx := context.Background()

	// The first two attempts stall past the per-attempt timeout; the
	// retry budget absorbs them.
	res := httpexec.ValidatedJSON[user](
		client.Request("GetUser").
			Path("/users/{id}").
			PathParam("id", "u-1").
			Get(ctx),
	)
	if !res.Ok() {
		logger.Fatal().
			Str("kind", res.Err().Kind.String()).
			Str("group", res.Err().Kind.Group().String()).
			Msg(res.Err().Message)
	}
	logger.Info().Str("user", res.Value().Name).Msg("fetched user")

	// A missing user is a typed failure, not an exception.
	missing := client.Request("GetUser").
		Path("/users/{id}").
		PathParam("id", "nope").
		Get(ctx)
	if !missing.Ok() && missing.Err().Kind == httpexec.KindNotFound {
		logger.Info().Msg("user not found, as expected")
	}

	// Create a user with a JSON body; the body replays across retries.
	created := client.Request("CreateUser").
		Path("/users").
		Body(user{ID: "u-2", Name: "Ada", Email: "ada@example.com"}).
		Post(ctx)
	if created.Ok() {
		logger.Info().Int("status", created.Value().StatusCode).Msg("created user")
	}
}

// newFlakyServer serves a tiny user API whose first two calls hang until
// the client gives up, exercising the timeout and retry path.
func newFlakyServer() *httptest.Server {
	var calls int32
	mux := http.NewServeMux()

	mux.HandleFunc("GET /users/u-1", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u-1","name":"Grace","email":"grace@example.com"}`))
	})
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	return httptest.NewServer(mux)
}
