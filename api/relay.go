package api

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/api/header"
	"github.com/papercomputeco/runstream/pkg/capture"
	"github.com/papercomputeco/runstream/pkg/sse"
)

// SessionHeader carries the ID of the session a relayed run is recorded as.
const SessionHeader = "X-Runstream-Session"

var relayHeaders = header.NewHandler(SessionHeader)

// handleRelay handles GET /v1/runs/:id/stream. The upstream run stream is
// forwarded verbatim while it is decoded and recorded. Client request headers
// such as Authorization are passed on to the upstream.
func (s *Server) handleRelay(c *fiber.Ctx) error {
	if s.config.BaseURL == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "no upstream base URL configured"})
	}

	target := sse.RunStreamURL(s.config.BaseURL, c.Params("id"))

	// The relay outlives the handler, so it cannot use the request context.
	ctx, cancel := context.WithCancel(context.Background())

	body, err := sse.Open(ctx, s.config.HTTPClient, target, relayHeaders.UpstreamRequestHeaders(c))
	if err != nil {
		cancel()
		s.logger.Error("failed to open upstream run stream",
			zap.String("target", target),
			zap.Error(err),
		)

		var statusErr *sse.StatusError
		if errors.As(err, &statusErr) {
			return c.Status(statusErr.StatusCode).JSON(ErrorResponse{Error: statusErr.Error()})
		}
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "upstream request failed"})
	}

	sessionID := uuid.NewString()
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(SessionHeader, sessionID)

	// io.Pipe gives per-line backpressure: each tee write blocks until
	// fasthttp has flushed the previous chunk to the client.
	pr, pw := io.Pipe()
	go s.relay(ctx, cancel, body, pw, target, sessionID)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

func (s *Server) relay(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, pw *io.PipeWriter, target, sessionID string) {
	defer cancel()
	defer body.Close()

	summary, err := capture.Run(ctx, body, capture.Config{
		Source:     target,
		SessionID:  sessionID,
		Record:     pw,
		Pool:       s.config.Pool,
		BestEffort: true,
		Logger:     s.logger,
	})
	pw.CloseWithError(err)

	if err != nil {
		s.logger.Warn("relay ended with error",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("relay finished",
		zap.String("session_id", sessionID),
		zap.Int("lines", summary.Lines),
		zap.Int("events", summary.Events),
	)
}
