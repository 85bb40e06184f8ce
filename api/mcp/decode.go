package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/pkg/capture"
	"github.com/papercomputeco/runstream/pkg/stream"
)

var (
	decodeToolName    = "decode_stream"
	decodeDescription = "Decode the raw text of an agent run event stream (lines of \"data: {...}\") into typed events such as status updates, tool invocations, tool results and assistant messages."
)

// DecodeStreamInput represents the input arguments for the decode_stream tool.
type DecodeStreamInput struct {
	Text string `json:"text" jsonschema:"the raw event stream text, one line per stream line"`
}

// DecodeStreamOutput represents the output of the decode_stream tool.
type DecodeStreamOutput struct {
	Count  int              `json:"count"`
	Events []map[string]any `json:"events"`
}

func (s *Server) handleDecodeStream(_ context.Context, _ *mcp.CallToolRequest, input DecodeStreamInput) (*mcp.CallToolResult, DecodeStreamOutput, error) {
	logger := s.config.Logger

	events, err := capture.Decode(strings.NewReader(input.Text))
	if err != nil {
		logger.Error("failed to decode stream", zap.Error(err))
		return errorResult("Failed to decode stream: %v", err), DecodeStreamOutput{}, nil
	}

	output := DecodeStreamOutput{
		Count:  len(events),
		Events: make([]map[string]any, 0, len(events)),
	}
	for _, ev := range events {
		obj, err := eventObject(ev)
		if err != nil {
			return errorResult("Failed to encode event: %v", err), DecodeStreamOutput{}, nil
		}
		output.Events = append(output.Events, obj)
	}

	result, err := textResult(output)
	if err != nil {
		return errorResult("Failed to serialize results: %v", err), DecodeStreamOutput{}, nil
	}
	return result, output, nil
}

func eventObject(ev stream.Event) (map[string]any, error) {
	b, err := stream.Marshal(ev)
	if err != nil {
		return nil, err
	}

	obj := map[string]any{}
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}
