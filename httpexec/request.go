package httpexec

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Request is the descriptor one logical request executes against: a fully
// assembled method, URL, headers, body and policy. The executor never
// mutates it; each physical attempt builds a fresh *http.Request from it
// so bodies replay safely across retries.
type Request struct {
	// Method is the HTTP method.
	Method string

	// URL is the absolute request URL.
	URL string

	// Header is the header multimap applied to every attempt.
	Header http.Header

	// Body is the request body, captured as bytes so attempts can replay
	// it. Nil means no body.
	Body []byte

	// Policy is the execution policy snapshot for this request.
	Policy RetryPolicy

	// operation labels the request in logs, spans and metrics.
	operation string
}

// build assembles the per-attempt *http.Request bound to ctx.
func (r *Request) build(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range r.Header {
		httpReq.Header[k] = v
	}
	if len(r.Body) > 0 {
		httpReq.ContentLength = int64(len(r.Body))
	}
	return httpReq, nil
}

// RequestBuilder provides a fluent API for assembling a Request.
//
// Create one with Client.Request():
//
//	res := client.Request("CreateUser").
//	    Path("/users").
//	    Body(user).
//	    Post(ctx)
//
// The terminal verbs (Get, Post, ...) resolve the accumulated state into
// an immutable Request descriptor and hand it to the executor; mutating
// the builder afterwards does not affect the in-flight execution.
type RequestBuilder struct {
	client        *Client
	operationName string
	path          string
	pathParams    map[string]string
	queryParams   url.Values
	headers       http.Header
	body          []byte
	bodyErr       error
	contentType   string
	policy        RetryPolicy
}

// Path sets the request path. Path parameters use {name} syntax and are
// filled with PathParam.
func (rb *RequestBuilder) Path(path string) *RequestBuilder {
	rb.path = path
	return rb
}

// PathParam sets a path parameter value.
func (rb *RequestBuilder) PathParam(key, value string) *RequestBuilder {
	rb.pathParams[key] = value
	return rb
}

// Query adds a single query parameter.
func (rb *RequestBuilder) Query(key, value string) *RequestBuilder {
	if rb.queryParams == nil {
		rb.queryParams = make(url.Values)
	}
	rb.queryParams.Set(key, value)
	return rb
}

// Queries adds multiple query parameters.
func (rb *RequestBuilder) Queries(params map[string]string) *RequestBuilder {
	if rb.queryParams == nil {
		rb.queryParams = make(url.Values)
	}
	for k, v := range params {
		rb.queryParams.Set(k, v)
	}
	return rb
}

// Header sets a single request header, overriding any client default.
func (rb *RequestBuilder) Header(key, value string) *RequestBuilder {
	rb.headers.Set(key, value)
	return rb
}

// Headers sets multiple request headers.
func (rb *RequestBuilder) Headers(headers map[string]string) *RequestBuilder {
	for k, v := range headers {
		rb.headers.Set(k, v)
	}
	return rb
}

// Retries sets the retry budget for this request.
func (rb *RequestBuilder) Retries(n int) *RequestBuilder {
	rb.policy.Retries = n
	return rb
}

// RetryDelay sets the base backoff delay for this request.
func (rb *RequestBuilder) RetryDelay(d time.Duration) *RequestBuilder {
	rb.policy.RetryDelay = d
	return rb
}

// Timeout sets the per-attempt timeout for this request.
func (rb *RequestBuilder) Timeout(d time.Duration) *RequestBuilder {
	rb.policy.Timeout = d
	return rb
}

// Policy replaces the whole policy for this request.
func (rb *RequestBuilder) Policy(p RetryPolicy) *RequestBuilder {
	rb.policy = p
	return rb
}

// Body sets the request body with automatic content type detection.
//
// Encoding rules:
//   - string: raw text (text/plain)
//   - []byte: raw bytes (application/octet-stream)
//   - io.Reader: captured to bytes so retries can replay it
//   - url.Values: form encoded (application/x-www-form-urlencoded)
//   - anything else: JSON (application/json)
func (rb *RequestBuilder) Body(v any) *RequestBuilder {
	if v == nil {
		return rb
	}

	switch body := v.(type) {
	case string:
		rb.body = []byte(body)
		rb.contentType = "text/plain; charset=utf-8"
	case []byte:
		rb.body = body
		rb.contentType = "application/octet-stream"
	case url.Values:
		rb.body = []byte(body.Encode())
		rb.contentType = "application/x-www-form-urlencoded"
	case io.Reader:
		data, err := io.ReadAll(body)
		if err != nil {
			rb.bodyErr = err
			return rb
		}
		rb.body = data
	default:
		return rb.BodyJSON(v)
	}
	return rb
}

// BodyJSON explicitly encodes the body as JSON.
func (rb *RequestBuilder) BodyJSON(v any) *RequestBuilder {
	if v == nil {
		return rb
	}
	data, err := json.Marshal(v)
	if err != nil {
		// Surfaces as a ClientError failure when the request executes.
		rb.bodyErr = err
		return rb
	}
	rb.body = data
	rb.contentType = "application/json"
	return rb
}

// BodyForm sets form data as the request body.
func (rb *RequestBuilder) BodyForm(data map[string]string) *RequestBuilder {
	values := make(url.Values)
	for k, v := range data {
		values.Set(k, v)
	}
	rb.body = []byte(values.Encode())
	rb.contentType = "application/x-www-form-urlencoded"
	return rb
}

// Get executes a GET request.
func (rb *RequestBuilder) Get(ctx context.Context, path ...string) Result[*Response] {
	return rb.Do(ctx, http.MethodGet, path...)
}

// Post executes a POST request.
func (rb *RequestBuilder) Post(ctx context.Context, path ...string) Result[*Response] {
	return rb.Do(ctx, http.MethodPost, path...)
}

// Put executes a PUT request.
func (rb *RequestBuilder) Put(ctx context.Context, path ...string) Result[*Response] {
	return rb.Do(ctx, http.MethodPut, path...)
}

// Patch executes a PATCH request.
func (rb *RequestBuilder) Patch(ctx context.Context, path ...string) Result[*Response] {
	return rb.Do(ctx, http.MethodPatch, path...)
}

// Delete executes a DELETE request.
func (rb *RequestBuilder) Delete(ctx context.Context, path ...string) Result[*Response] {
	return rb.Do(ctx, http.MethodDelete, path...)
}

// Do executes a request with an arbitrary method. The optional trailing
// path overrides any Path() value.
func (rb *RequestBuilder) Do(ctx context.Context, method string, path ...string) Result[*Response] {
	if len(path) > 0 {
		rb.path = path[0]
	}

	req, err := rb.resolve(method)
	if err != nil {
		return Failure[*Response](newError(KindClientError, "invalid request", err))
	}
	return rb.client.Execute(ctx, req)
}

// resolve snapshots the builder into an immutable Request descriptor.
func (rb *RequestBuilder) resolve(method string) (*Request, error) {
	if rb.bodyErr != nil {
		return nil, rb.bodyErr
	}

	targetURL, err := rb.buildURL()
	if err != nil {
		return nil, err
	}

	headers := make(http.Header, len(rb.headers)+len(rb.client.defaultHeaders)+1)
	for k, v := range rb.client.defaultHeaders {
		headers[k] = append([]string(nil), v...)
	}
	for k, v := range rb.headers {
		headers[k] = append([]string(nil), v...)
	}
	if rb.contentType != "" && headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", rb.contentType)
	}

	return &Request{
		Method:    method,
		URL:       targetURL,
		Header:    headers,
		Body:      rb.body,
		Policy:    rb.policy,
		operation: rb.operationName,
	}, nil
}

// buildURL constructs the full URL from base URL, path and query params.
func (rb *RequestBuilder) buildURL() (string, error) {
	path := rb.path
	for k, v := range rb.pathParams {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(v))
	}

	var fullURL string
	if rb.client.baseURL != "" {
		fullURL = strings.TrimSuffix(rb.client.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	} else {
		fullURL = path
	}

	if len(rb.queryParams) > 0 {
		u, err := url.Parse(fullURL)
		if err != nil {
			return "", err
		}
		q := u.Query()
		for k, v := range rb.queryParams {
			for _, vv := range v {
				q.Add(k, vv)
			}
		}
		u.RawQuery = q.Encode()
		fullURL = u.String()
	}

	return fullURL, nil
}
