package stream

// Kind names an event variant. It is the value of the "event_type" field in
// the JSON form of an event.
type Kind string

const (
	KindStreamStart      Kind = "stream_start"
	KindStatus           Kind = "status"
	KindAssistantChunk   Kind = "assistant_chunk"
	KindAssistantMessage Kind = "assistant_message"
	KindToolUseDetected  Kind = "tool_use_detected"
	KindToolInvocation   Kind = "tool_invocation"
	KindToolUseWaiting   Kind = "tool_use_waiting"
	KindToolResult       Kind = "tool_result"
	KindStreamEnd        Kind = "stream_end"
	KindParseError       Kind = "parse_error"
)

// Kinds lists every event kind in protocol order.
var Kinds = []Kind{
	KindStreamStart,
	KindStatus,
	KindAssistantChunk,
	KindAssistantMessage,
	KindToolUseDetected,
	KindToolInvocation,
	KindToolUseWaiting,
	KindToolResult,
	KindStreamEnd,
	KindParseError,
}

// Event is a typed application event produced by the Decoder.
// The set of implementations is closed: consumers should type switch over
// the concrete types declared in this file.
type Event interface {
	Kind() Kind
	event()
}

// StreamStart is emitted once per session, before the first event derived
// from a well-formed payload.
type StreamStart struct{}

// Status reports a change in the remote run's status.
type Status struct {
	StatusType   string  `json:"status_type"`
	Message      *string `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// AssistantChunk is one streamed fragment of an assistant turn. FullText is
// the concatenation of every chunk received so far in the turn, ordered by
// sequence number.
type AssistantChunk struct {
	Sequence int    `json:"sequence"`
	Content  string `json:"content"`
	FullText string `json:"full_text"`
}

// AssistantMessage is a complete assistant message. It closes the current turn.
type AssistantMessage struct {
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// ToolUseDetected signals that the assistant text entered a tool call block.
type ToolUseDetected struct{}

// ToolInvocation names the function the assistant is calling.
type ToolInvocation struct {
	FunctionName string `json:"function_name"`
}

// ToolUseWaiting signals that the tool call block closed and the remote side
// is now executing the tool.
type ToolUseWaiting struct{}

// ToolResult is the outcome of a tool execution.
type ToolResult struct {
	ToolName string  `json:"tool_name"`
	Success  bool    `json:"success"`
	Output   any     `json:"output"`
	Error    *string `json:"error"`
}

// StreamEnd is emitted exactly once when the line source is exhausted.
type StreamEnd struct{}

// ParseError reports a payload that could not be decoded. It never ends the
// session.
type ParseError struct {
	ErrorMessage string  `json:"error_message"`
	RawData      *string `json:"raw_data"`
}

func (StreamStart) Kind() Kind      { return KindStreamStart }
func (Status) Kind() Kind           { return KindStatus }
func (AssistantChunk) Kind() Kind   { return KindAssistantChunk }
func (AssistantMessage) Kind() Kind { return KindAssistantMessage }
func (ToolUseDetected) Kind() Kind  { return KindToolUseDetected }
func (ToolInvocation) Kind() Kind   { return KindToolInvocation }
func (ToolUseWaiting) Kind() Kind   { return KindToolUseWaiting }
func (ToolResult) Kind() Kind       { return KindToolResult }
func (StreamEnd) Kind() Kind        { return KindStreamEnd }
func (ParseError) Kind() Kind       { return KindParseError }

func (StreamStart) event()      {}
func (Status) event()           {}
func (AssistantChunk) event()   {}
func (AssistantMessage) event() {}
func (ToolUseDetected) event()  {}
func (ToolInvocation) event()   {}
func (ToolUseWaiting) event()   {}
func (ToolResult) event()       {}
func (StreamEnd) event()        {}
func (ParseError) event()       {}

var (
	_ Event = StreamStart{}
	_ Event = Status{}
	_ Event = AssistantChunk{}
	_ Event = AssistantMessage{}
	_ Event = ToolUseDetected{}
	_ Event = ToolInvocation{}
	_ Event = ToolUseWaiting{}
	_ Event = ToolResult{}
	_ Event = StreamEnd{}
	_ Event = ParseError{}
)
