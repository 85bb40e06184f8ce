// Package api provides an HTTP API server for inspecting recorded run
// stream sessions, decoding ad-hoc stream text and relaying live runs.
package api

import (
	"net/http"

	"github.com/papercomputeco/runstream/pkg/worker"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string

	// BaseURL is the agent API root that relayed run IDs are resolved against.
	BaseURL string

	// HTTPClient opens upstream run streams. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Pool records relayed runs when set.
	Pool *worker.Pool

	// NoMCP disables the tools mounted at /mcp.
	NoMCP bool
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}
