package sse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/papercomputeco/runstream/pkg/utils"
)

const errorBodyLimit = 512

// RunStreamURL returns the stream endpoint of an agent run.
func RunStreamURL(baseURL, runID string) string {
	return strings.TrimRight(baseURL, "/") + "/agent-run/" + url.PathEscape(runID) + "/stream"
}

// Open issues a single GET for the stream at target and returns the response
// body. Callers own closing it. Non-2xx responses are returned as errors
// carrying the status and the start of the body.
func Open(ctx context.Context, client *http.Client, target string, headers http.Header) (io.ReadCloser, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating stream request: %w", err)
	}

	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting stream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       utils.Truncate(strings.TrimSpace(string(body)), 200),
		}
	}

	return resp.Body, nil
}

// ParseHeaders converts "Key: Value" pairs into an http.Header.
func ParseHeaders(pairs []string) (http.Header, error) {
	h := http.Header{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Key: Value\"", pair)
		}
		h.Add(key, strings.TrimSpace(value))
	}
	return h, nil
}

// StatusError is returned by Open when the server answers with a non-2xx
// status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("stream request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("stream request failed with status %d: %s", e.StatusCode, e.Body)
}
