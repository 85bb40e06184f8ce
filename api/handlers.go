package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/pkg/capture"
	"github.com/papercomputeco/runstream/pkg/storage"
	"github.com/papercomputeco/runstream/pkg/stream"
)

const defaultSessionLimit = 50

// SessionEventsResponse lists the decoded events of a session.
type SessionEventsResponse struct {
	SessionID string            `json:"session_id"`
	Count     int               `json:"count"`
	Events    []json.RawMessage `json:"events"`
}

// DecodeResponse is returned by POST /v1/decode.
type DecodeResponse struct {
	Count  int               `json:"count"`
	Events []json.RawMessage `json:"events"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListSessions handles GET /v1/sessions.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	limit := defaultSessionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = n
	}

	sessions, err := s.driver.ListSessions(c.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list sessions"})
	}

	return c.JSON(map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// handleGetSession handles GET /v1/sessions/:id.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	session, err := s.driver.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		return s.storageError(c, err)
	}
	return c.JSON(session)
}

// handleSessionEvents handles GET /v1/sessions/:id/events.
func (s *Server) handleSessionEvents(c *fiber.Ctx) error {
	id := c.Params("id")

	records, err := s.driver.Records(c.Context(), id)
	if err != nil {
		return s.storageError(c, err)
	}

	events := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		events = append(events, r.Payload)
	}

	return c.JSON(SessionEventsResponse{
		SessionID: id,
		Count:     len(events),
		Events:    events,
	})
}

// handleReplay handles GET /v1/sessions/:id/replay. The recorded raw lines
// are sent back as an event stream, so a recorded run can be watched again.
func (s *Server) handleReplay(c *fiber.Ctx) error {
	lines, err := s.driver.Lines(c.Context(), c.Params("id"))
	if err != nil {
		return s.storageError(c, err)
	}

	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line.Text)
		buf.WriteByte('\n')
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.Send(buf.Bytes())
}

// handleDecode handles POST /v1/decode. The request body is raw stream text.
func (s *Server) handleDecode(c *fiber.Ctx) error {
	decoded, err := capture.Decode(bytes.NewReader(c.Body()))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	events := make([]json.RawMessage, 0, len(decoded))
	for _, ev := range decoded {
		b, err := stream.Marshal(ev)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to encode events"})
		}
		events = append(events, b)
	}

	return c.JSON(DecodeResponse{
		Count:  len(events),
		Events: events,
	})
}

func (s *Server) storageError(c *fiber.Ctx, err error) error {
	var notFound storage.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	}

	s.logger.Error("storage request failed",
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read session"})
}
