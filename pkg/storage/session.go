package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/runstream/pkg/stream"
)

// Session is one decoded run stream.
type Session struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	LineCount   int        `json:"line_count"`
	EventCount  int        `json:"event_count"`
	ParseErrors int        `json:"parse_errors"`
}

// NewSession returns an open session with a fresh ID.
func NewSession(source string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
}

// Completion carries the counters stored when a session ends.
type Completion struct {
	EndedAt     time.Time
	LineCount   int
	EventCount  int
	ParseErrors int
}

// Line is a raw line as read from the stream.
type Line struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
}

// Record is a decoded event in its JSON form.
type Record struct {
	SessionID string          `json:"session_id"`
	Index     int             `json:"index"`
	Kind      stream.Kind     `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

// NewRecord encodes ev as the index-th event of a session.
func NewRecord(sessionID string, index int, ev stream.Event) (*Record, error) {
	payload, err := stream.Marshal(ev)
	if err != nil {
		return nil, err
	}

	return &Record{
		SessionID: sessionID,
		Index:     index,
		Kind:      ev.Kind(),
		Payload:   payload,
	}, nil
}

// Event decodes the stored payload.
func (r *Record) Event() (stream.Event, error) {
	return stream.Unmarshal(r.Payload)
}
