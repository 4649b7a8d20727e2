package httpexec

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// executeCoalesced runs a GET through the client's singleflight group so
// that concurrent identical requests share one transport execution.
// Followers receive the same Result as the leader; the shared Response
// serves its cached body to every caller.
//
// A follower whose own context is cancelled still waits for the leader —
// coalescing trades strict cancellation granularity for deduplication,
// which is why it is opt-in.
func (c *Client) executeCoalesced(ctx context.Context, req *Request, policy RetryPolicy) Result[*Response] {
	key := coalesceKey(req.Method, req.URL)

	v, _, _ := c.flights.Do(key, func() (any, error) {
		res := c.executeRequest(ctx, req, policy)
		if res.Ok() {
			// Cache the body now so followers never race on the stream.
			_, _ = res.Value().Bytes()
		}
		return res, nil
	})

	return v.(Result[*Response])
}

// coalesceKey normalizes method + URL (with sorted query parameters)
// into a stable dedupe key.
func coalesceKey(method, rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return hashKey(method + "|" + rawURL)
	}

	query := parsed.Query()
	sortedParams := make([]string, 0, len(query))
	for key, values := range query {
		sort.Strings(values)
		for _, v := range values {
			sortedParams = append(sortedParams, key+"="+v)
		}
	}
	sort.Strings(sortedParams)

	normalized := parsed.Scheme + "://" + parsed.Host + parsed.Path
	return hashKey(method + "|" + normalized + "|" + strings.Join(sortedParams, "&"))
}

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
