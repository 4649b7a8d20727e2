package httpexec

import (
	"bytes"
	"io"
	"net/http"
)

// Response wraps http.Response with cached body reading and status
// helpers. The body is read at most once; every accessor after the first
// read serves the cached bytes, so a Response can be inspected repeatedly
// (and shared between coalesced callers) without re-reading the stream.
type Response struct {
	// Response embeds the standard http.Response. All of its fields and
	// methods remain accessible, e.g. resp.StatusCode or
	// resp.Header.Get("Content-Type").
	*http.Response

	// request is the final request that produced this response.
	request *http.Request

	body     []byte
	bodyErr  error
	bodyRead bool
}

func newResponse(resp *http.Response, req *http.Request) *Response {
	return &Response{Response: resp, request: req}
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Bytes returns the response body, reading and caching it on first use.
// The read happens once: a failed read is cached too, so concurrent
// sharers of one Response all observe the same outcome.
func (r *Response) Bytes() ([]byte, error) {
	if r.bodyRead {
		return r.body, r.bodyErr
	}
	if r.Response.Body == nil {
		r.bodyRead = true
		return nil, nil
	}

	defer r.Response.Body.Close()
	body, err := io.ReadAll(r.Response.Body)
	r.bodyRead = true
	if err != nil {
		r.bodyErr = err
		return nil, err
	}

	r.body = body
	return r.body, nil
}

// Text returns the response body as a string.
func (r *Response) Text() (string, error) {
	body, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Reader returns the body as a stream. If the body has already been
// cached it returns a reader over the cached bytes; otherwise it hands
// out the live stream and the caller owns closing it.
func (r *Response) Reader() io.ReadCloser {
	if r.bodyRead {
		return io.NopCloser(bytes.NewReader(r.body))
	}
	if r.Response.Body == nil {
		return io.NopCloser(bytes.NewReader(nil))
	}
	return r.Response.Body
}

// discard drains and closes the body so the underlying connection can be
// reused. Safe to call whether or not the body was already read.
func (r *Response) discard() {
	if r == nil || r.bodyRead || r.Response == nil || r.Response.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, r.Response.Body)
	r.Response.Body.Close()
	r.bodyRead = true
}
