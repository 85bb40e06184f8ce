// Package mcp provides an MCP (Model Context Protocol) server that lets
// agents decode run streams and browse recorded sessions.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/pkg/storage"
	"github.com/papercomputeco/runstream/pkg/utils"
)

type Config struct {
	// Driver backs the session tools. Without it only decode_stream is
	// available.
	Driver storage.Driver

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the runstream tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "runstream",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)
	s.mcpServer = mcpServer

	if !c.Noop {
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        decodeToolName,
			Description: decodeDescription,
		}, s.handleDecodeStream)

		if c.Driver != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        listSessionsToolName,
				Description: listSessionsDescription,
			}, s.handleListSessions)

			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        getSessionToolName,
				Description: getSessionDescription,
			}, s.handleGetSession)
		}
	}

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// errorResult reports a tool failure to the calling agent.
func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// textResult serializes the structured output as JSON for the text field,
// since tools returning structured content should also return it as text.
func textResult(output any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil
}
