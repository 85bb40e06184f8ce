package testutils

import (
	"encoding/json"
	"strings"
)

// DataLine encodes v as a "data: " stream line.
func DataLine(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return "data: " + string(b)
}

// Encoded returns v as a JSON-encoded string for nesting in an envelope.
func Encoded(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// ChunkLine returns an assistant chunk line carrying text.
func ChunkLine(seq int, text string) string {
	return DataLine(map[string]any{
		"type":     "assistant",
		"sequence": seq,
		"content":  Encoded(map[string]any{"content": text}),
	})
}

// SampleRun returns the lines of a short agent run: a status update, a
// streamed tool call for search_web, its result and the final message.
func SampleRun() []string {
	return []string{
		DataLine(map[string]any{"type": "status", "status": "running"}),
		"",
		ChunkLine(0, "Let me check. "),
		ChunkLine(1, "<function_calls>\n"),
		ChunkLine(2, `<invoke name="search_web"><parameter name="query">weather</parameter></invoke>`),
		ChunkLine(3, "\n</function_calls>"),
		DataLine(map[string]any{
			"type": "tool",
			"content": Encoded(map[string]any{
				"tool_execution": map[string]any{
					"function_name": "search_web",
					"result": map[string]any{
						"success": true,
						"output":  map[string]any{"answer": "sunny"},
					},
				},
			}),
		}),
		DataLine(map[string]any{
			"type":       "assistant",
			"message_id": "msg-1",
			"content":    Encoded(map[string]any{"role": "assistant", "content": "It is sunny."}),
		}),
		DataLine(map[string]any{
			"type":    "status",
			"content": Encoded(map[string]any{"status_type": "completed", "finish_reason": "stop"}),
		}),
	}
}

// SampleRunText joins SampleRun into stream text.
func SampleRunText() string {
	return strings.Join(SampleRun(), "\n") + "\n"
}
