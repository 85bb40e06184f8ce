package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/pkg/storage"
)

var (
	listSessionsToolName    = "list_sessions"
	listSessionsDescription = "List recorded agent run stream sessions, newest first, with their line, event and parse error counts."

	getSessionToolName    = "get_session"
	getSessionDescription = "Get one recorded agent run stream session together with its decoded events."
)

const defaultListLimit = 20

// ListSessionsInput represents the input arguments for the list_sessions tool.
type ListSessionsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of sessions to return (default: 20)"`
}

// SessionSummary is a recorded session with timestamps as RFC 3339 strings.
type SessionSummary struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	StartedAt   string `json:"started_at"`
	EndedAt     string `json:"ended_at,omitempty"`
	LineCount   int    `json:"line_count"`
	EventCount  int    `json:"event_count"`
	ParseErrors int    `json:"parse_errors"`
}

// ListSessionsOutput represents the output of the list_sessions tool.
type ListSessionsOutput struct {
	Sessions []SessionSummary `json:"sessions"`
	Count    int              `json:"count"`
}

// GetSessionInput represents the input arguments for the get_session tool.
type GetSessionInput struct {
	ID string `json:"id" jsonschema:"the session ID"`
}

// GetSessionOutput represents the output of the get_session tool.
type GetSessionOutput struct {
	Session SessionSummary   `json:"session"`
	Events  []map[string]any `json:"events"`
}

func (s *Server) handleListSessions(ctx context.Context, _ *mcp.CallToolRequest, input ListSessionsInput) (*mcp.CallToolResult, ListSessionsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	sessions, err := s.config.Driver.ListSessions(ctx, limit)
	if err != nil {
		s.config.Logger.Error("failed to list sessions", zap.Error(err))
		return errorResult("Failed to list sessions: %v", err), ListSessionsOutput{}, nil
	}

	output := ListSessionsOutput{
		Sessions: make([]SessionSummary, 0, len(sessions)),
		Count:    len(sessions),
	}
	for _, session := range sessions {
		output.Sessions = append(output.Sessions, summarize(session))
	}

	result, err := textResult(output)
	if err != nil {
		return errorResult("Failed to serialize results: %v", err), ListSessionsOutput{}, nil
	}
	return result, output, nil
}

func (s *Server) handleGetSession(ctx context.Context, _ *mcp.CallToolRequest, input GetSessionInput) (*mcp.CallToolResult, GetSessionOutput, error) {
	session, err := s.config.Driver.GetSession(ctx, input.ID)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return errorResult("Session not found: %s", input.ID), GetSessionOutput{}, nil
		}
		s.config.Logger.Error("failed to get session", zap.String("id", input.ID), zap.Error(err))
		return errorResult("Failed to get session: %v", err), GetSessionOutput{}, nil
	}

	records, err := s.config.Driver.Records(ctx, input.ID)
	if err != nil {
		return errorResult("Failed to get session events: %v", err), GetSessionOutput{}, nil
	}

	output := GetSessionOutput{
		Session: summarize(session),
		Events:  make([]map[string]any, 0, len(records)),
	}
	for _, record := range records {
		ev, err := record.Event()
		if err != nil {
			s.config.Logger.Warn("skipping undecodable record",
				zap.String("session_id", input.ID),
				zap.Int("index", record.Index),
				zap.Error(err),
			)
			continue
		}

		obj, err := eventObject(ev)
		if err != nil {
			return errorResult("Failed to encode event: %v", err), GetSessionOutput{}, nil
		}
		output.Events = append(output.Events, obj)
	}

	result, err := textResult(output)
	if err != nil {
		return errorResult("Failed to serialize results: %v", err), GetSessionOutput{}, nil
	}
	return result, output, nil
}

func summarize(session *storage.Session) SessionSummary {
	summary := SessionSummary{
		ID:          session.ID,
		Source:      session.Source,
		StartedAt:   session.StartedAt.Format(time.RFC3339Nano),
		LineCount:   session.LineCount,
		EventCount:  session.EventCount,
		ParseErrors: session.ParseErrors,
	}
	if session.EndedAt != nil {
		summary.EndedAt = session.EndedAt.Format(time.RFC3339Nano)
	}
	return summary
}
