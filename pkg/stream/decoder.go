// Package stream decodes the server-sent line stream of a remote agent run
// into typed events.
//
// A run stream is a sequence of "data: {json}" lines. Each payload is an
// envelope whose "type" selects a status update, a streamed assistant chunk,
// a complete assistant message or a tool result. While chunks arrive the
// Decoder also follows the tool call markup embedded in the assistant text:
//
//	TEXT ──<function_calls>──▶ IN_TOOL_CALL ──</function_calls>──▶ TOOL_CALL_ENDED
//	  ▲                                                                  │
//	  └──────────────────────── complete message ◀──────────────────────┘
//
// A Decoder holds per-session state and is not safe for concurrent use.
package stream

import (
	"iter"
	"regexp"
	"sort"
	"strings"
)

const (
	dataPrefix = "data: "

	functionCallsOpen  = "<function_calls>"
	functionCallsClose = "</function_calls>"
)

var invokeNameRegex = regexp.MustCompile(`<invoke\s+name="([^"]+)"`)

// Mode is the position of the Decoder within the tool call sub-protocol.
type Mode int

const (
	ModeText Mode = iota
	ModeInToolCall
	ModeToolCallEnded
)

func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeInToolCall:
		return "in_tool_call"
	case ModeToolCallEnded:
		return "tool_call_ended"
	default:
		return "unknown"
	}
}

// Decoder turns stream lines into events.
type Decoder struct {
	chunks     []envelope
	mode       Mode
	activeTool string
	started    bool
}

// NewDecoder returns a Decoder ready for a new session.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset discards all session state.
func (d *Decoder) Reset() {
	d.chunks = nil
	d.mode = ModeText
	d.activeTool = ""
	d.started = false
}

// Mode reports the current tool call mode.
func (d *Decoder) Mode() Mode {
	return d.mode
}

// ActiveTool reports the tool name captured in the current tool call block,
// if any.
func (d *Decoder) ActiveTool() string {
	return d.activeTool
}

// Decode returns the lazy event sequence for lines. The Decoder is reset
// when iteration begins. A line is pulled from lines only once every event
// derived from the previous line has been consumed, and the sequence always
// ends with StreamEnd unless the consumer stops early.
func (d *Decoder) Decode(lines iter.Seq[string]) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		d.Reset()

		for line := range lines {
			for _, ev := range d.Feed(line) {
				if !yield(ev) {
					return
				}
			}
		}

		for _, ev := range d.Finish() {
			if !yield(ev) {
				return
			}
		}
	}
}

// DecodeAll decodes a complete slice of lines with a fresh Decoder.
func DecodeAll(lines []string) []Event {
	d := NewDecoder()

	var events []Event
	for ev := range d.Decode(func(yield func(string) bool) {
		for _, l := range lines {
			if !yield(l) {
				return
			}
		}
	}) {
		events = append(events, ev)
	}
	return events
}

// Feed processes a single line and returns the events it produced, in order.
// Push-style callers use Feed and Finish instead of Decode.
func (d *Decoder) Feed(line string) []Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return nil
	}

	env, ok := parseEnvelope(payload)
	if !ok {
		return []Event{parseError("Failed to parse JSON", &payload)}
	}

	var events []Event
	if !d.started {
		d.started = true
		events = append(events, StreamStart{})
	}

	switch env.str("type") {
	case "status":
		events = append(events, d.handleStatus(env))
	case "assistant":
		switch {
		case env.present("message_id"):
			events = append(events, d.handleMessage(env)...)
		case env.present("sequence"):
			events = append(events, d.handleChunk(env)...)
		}
	case "tool":
		events = append(events, d.handleToolResult(env))
	}

	return events
}

// Finish returns the events that close a session.
func (d *Decoder) Finish() []Event {
	return []Event{StreamEnd{}}
}

func (d *Decoder) handleStatus(env envelope) Event {
	details := envelope{}
	for k, v := range contentObject(env["content"]) {
		details[k] = v
	}

	if truthy(env["status"]) {
		details["status_type"] = env["status"]
	}
	if truthy(env["message"]) {
		details["message"] = env["message"]
	}

	merged := make(envelope, len(env)+len(details))
	for k, v := range env {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}

	statusType := "unknown"
	switch {
	case merged.present("status_type"):
		statusType = merged.text("status_type")
	case merged.present("status"):
		statusType = merged.text("status")
	}

	finishReason := "received"
	if merged.present("finish_reason") {
		finishReason = merged.text("finish_reason")
	}

	var message *string
	if merged.present("message") {
		m := merged.text("message")
		message = &m
	}

	return Status{
		StatusType:   statusType,
		Message:      message,
		FinishReason: finishReason,
	}
}

func (d *Decoder) handleChunk(env envelope) []Event {
	d.chunks = append(d.chunks, env)
	fullText := d.fullText()

	events := []Event{AssistantChunk{
		Sequence: sequenceOf(env["sequence"]),
		Content:  rawText(env["content"]),
		FullText: fullText,
	}}

	switch d.mode {
	case ModeText:
		if strings.Contains(fullText, functionCallsOpen) {
			d.mode = ModeInToolCall
			events = append(events, ToolUseDetected{})
		}

	case ModeInToolCall:
		if d.activeTool == "" {
			if m := invokeNameRegex.FindStringSubmatch(fullText); m != nil {
				d.activeTool = m[1]
				events = append(events, ToolInvocation{FunctionName: m[1]})
			}
		}

		if strings.Contains(fullText, functionCallsClose) {
			d.mode = ModeToolCallEnded
			d.activeTool = ""
			events = append(events, ToolUseWaiting{})
		}

	case ModeToolCallEnded:
	}

	return events
}

// fullText concatenates the inner text of every chunk ordered by sequence.
// Chunks with equal sequence numbers keep their arrival order.
func (d *Decoder) fullText() string {
	ordered := make([]envelope, len(d.chunks))
	copy(ordered, d.chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return sequenceOf(ordered[i]["sequence"]) < sequenceOf(ordered[j]["sequence"])
	})

	var b strings.Builder
	for _, chunk := range ordered {
		inner := contentObject(chunk["content"])
		if inner == nil {
			continue
		}
		if s, ok := inner["content"].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

func (d *Decoder) handleMessage(env envelope) []Event {
	defer d.closeTurn()

	parsed := contentObject(env["content"])
	if len(parsed) == 0 {
		var raw *string
		if env.present("content") {
			r := rawText(env["content"])
			raw = &r
		}
		return []Event{parseError("Failed to parse assistant message content", raw)}
	}

	role := "unknown"
	if parsed.present("role") {
		role = parsed.text("role")
	}

	content := ""
	if parsed.present("content") {
		content = parsed.text("content")
	}

	return []Event{AssistantMessage{
		MessageID: env.text("message_id"),
		Role:      role,
		Content:   content,
	}}
}

func (d *Decoder) closeTurn() {
	d.chunks = nil
	d.mode = ModeText
	d.activeTool = ""
}

func (d *Decoder) handleToolResult(env envelope) Event {
	if !truthy(env["content"]) {
		return parseError("No content in tool result message", nil)
	}

	parsed := contentObject(env["content"])
	if len(parsed) == 0 {
		raw := rawText(env["content"])
		return parseError("Failed to parse tool result content", &raw)
	}

	execution, _ := parsed["tool_execution"].(map[string]any)
	exec := envelope(execution)

	toolName := "unknown"
	if exec.present("function_name") {
		toolName = exec.text("function_name")
	}

	resultObj, _ := exec["result"].(map[string]any)
	result := envelope(resultObj)

	var errText *string
	if result.present("error") {
		e := result.text("error")
		errText = &e
	}

	return ToolResult{
		ToolName: toolName,
		Success:  truthy(result["success"]),
		Output:   result["output"],
		Error:    errText,
	}
}

func parseError(msg string, raw *string) ParseError {
	return ParseError{ErrorMessage: msg, RawData: raw}
}
