package api

import (
	"errors"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/api/mcp"
	"github.com/papercomputeco/runstream/pkg/storage"
)

// Server is the API server for recorded and live run streams.
type Server struct {
	config Config
	driver storage.Driver
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The driver is injected to allow sharing with the worker pool that records
// relayed runs.
func NewServer(config Config, driver storage.Driver, logger *zap.Logger) (*Server, error) {
	if driver == nil {
		return nil, errors.New("storage driver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		driver: driver,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Get("/sessions", s.handleListSessions)
	v1.Get("/sessions/:id", s.handleGetSession)
	v1.Get("/sessions/:id/events", s.handleSessionEvents)
	v1.Get("/sessions/:id/replay", s.handleReplay)
	v1.Post("/decode", s.handleDecode)
	v1.Get("/runs/:id/stream", s.handleRelay)

	if !config.NoMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Driver: driver,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
