package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const eventTypeField = "event_type"

// Marshal encodes ev as a flat JSON object tagged with its "event_type".
func Marshal(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("cannot marshal nil event")
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s event: %w", ev.Kind(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshaling %s event: %w", ev.Kind(), err)
	}

	tag, err := json.Marshal(string(ev.Kind()))
	if err != nil {
		return nil, err
	}
	fields[eventTypeField] = tag

	return json.Marshal(fields)
}

// Unmarshal decodes an event previously encoded with Marshal.
func Unmarshal(data []byte) (Event, error) {
	var tagged struct {
		EventType Kind `json:"event_type"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}

	switch tagged.EventType {
	case KindStreamStart:
		return StreamStart{}, nil
	case KindStatus:
		return decodeInto[Status](data)
	case KindAssistantChunk:
		return decodeInto[AssistantChunk](data)
	case KindAssistantMessage:
		return decodeInto[AssistantMessage](data)
	case KindToolUseDetected:
		return ToolUseDetected{}, nil
	case KindToolInvocation:
		return decodeInto[ToolInvocation](data)
	case KindToolUseWaiting:
		return ToolUseWaiting{}, nil
	case KindToolResult:
		return decodeInto[ToolResult](data)
	case KindStreamEnd:
		return StreamEnd{}, nil
	case KindParseError:
		return decodeInto[ParseError](data)
	default:
		return nil, fmt.Errorf("unknown event type %q", tagged.EventType)
	}
}

func decodeInto[T Event](data []byte) (Event, error) {
	var ev T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", ev.Kind(), err)
	}
	return ev, nil
}
