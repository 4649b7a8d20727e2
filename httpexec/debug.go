package httpexec

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// logRequest logs an outgoing attempt.
func logRequest(logger zerolog.Logger, req *http.Request, operation string) {
	logger.Debug().
		Str("operation", operation).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("HTTP request")
}

// logResponse logs a received response.
func logResponse(logger zerolog.Logger, resp *http.Response, duration time.Duration) {
	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int64("content_length", resp.ContentLength).
		Msg("HTTP response")
}
