package eventstream

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/runstream/pkg/stream"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeEventDecoded is emitted for every event a session decodes.
	EventTypeEventDecoded = "runstream.event.decoded"
)

// EventDecoded is a transport-neutral envelope around one decoded event.
type EventDecoded struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	SessionID     string          `json:"session_id"`
	Source        string          `json:"source,omitempty"`
	Index         int             `json:"index"`
	Kind          stream.Kind     `json:"kind"`
	Event         json.RawMessage `json:"event"`
}

// NewEventDecoded wraps ev, the index-th event of a session.
func NewEventDecoded(sessionID, source string, index int, ev stream.Event) (*EventDecoded, error) {
	payload, err := stream.Marshal(ev)
	if err != nil {
		return nil, err
	}

	return &EventDecoded{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeEventDecoded,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		SessionID:     sessionID,
		Source:        source,
		Index:         index,
		Kind:          ev.Kind(),
		Event:         payload,
	}, nil
}
