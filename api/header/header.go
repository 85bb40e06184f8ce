// Package header filters the headers a relayed run stream request carries
// upstream.
//
// The relay sits between a client and the agent API like so:
//
//	Client <--> runstream API <--> Agent API run stream
//
// and each leg negotiates its own connection, encoding and caching.
package header

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between relay connections.
type Handler struct {
	skip map[string]struct{}
}

// skipRequest is the set of request headers (client --> relay --> upstream)
// that are not forwarded to the agent API.
var skipRequest = []string{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection",
	"Keep-Alive",
	"Upgrade",

	// The Host header is rewritten by Go's http.Transport to match the
	// upstream URL.
	"Host",

	// Go's http.Transport negotiates its own compression and decompresses
	// transparently; the relayed bytes must be the plain stream.
	"Accept-Encoding",

	// A GET for the stream never carries a body.
	"Content-Length",
	"Content-Type",

	// Set by the stream client itself.
	"Accept",
	"Cache-Control",
}

// NewHandler creates a new header Handler. extraSkip names further request
// headers to keep from the upstream, such as the relay's own headers.
func NewHandler(extraSkip ...string) *Handler {
	skip := make(map[string]struct{}, len(skipRequest)+len(extraSkip))
	for _, k := range skipRequest {
		skip[k] = struct{}{}
	}
	for _, k := range extraSkip {
		skip[http.CanonicalHeaderKey(k)] = struct{}{}
	}
	return &Handler{skip: skip}
}

// UpstreamRequestHeaders returns the request headers of the Fiber context
// that should be forwarded to the agent API.
func (h *Handler) UpstreamRequestHeaders(c *fiber.Ctx) http.Header {
	out := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := h.skip[k]; !skip {
			out.Add(k, string(value))
		}
	})
	return out
}
