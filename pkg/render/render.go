// Package render writes decoded stream events to terminals and pipes.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/runstream/pkg/cliui"
	"github.com/papercomputeco/runstream/pkg/stream"
	"github.com/papercomputeco/runstream/pkg/utils"
)

const outputPreviewLen = 80

var (
	startStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	toolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	invokeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

// Options tunes the Pretty renderer.
type Options struct {
	// ShowChunks streams assistant text as it arrives.
	ShowChunks bool

	// Markdown renders assistant messages that are not tool markup with glamour.
	Markdown bool
}

// Pretty writes one human readable line per significant event.
type Pretty struct {
	w    io.Writer
	opts Options

	// streamed is the assistant text already written for the current turn.
	streamed string

	// midLine is set while streamed text is waiting for its line break.
	midLine bool
}

// NewPretty returns a Pretty renderer writing to w.
func NewPretty(w io.Writer, opts Options) *Pretty {
	return &Pretty{w: w, opts: opts}
}

// Handle writes ev.
func (p *Pretty) Handle(ev stream.Event) error {
	var err error

	switch e := ev.(type) {
	case stream.StreamStart:
		err = p.println(startStyle.Render("[STREAM START]"))

	case stream.Status:
		err = p.println(statusStyle.Render("[STATUS] ") + boldStyle.Render(e.StatusType) + " " + statusStyle.Render(e.FinishReason))

	case stream.AssistantChunk:
		err = p.chunk(e)

	case stream.ToolUseDetected:
		err = p.println("\n" + toolStyle.Render("[TOOL USE DETECTED]"))

	case stream.ToolInvocation:
		err = p.println(invokeStyle.Render("[TOOL UPDATE] Calling function: ") + boldStyle.Render(fmt.Sprintf("%q", e.FunctionName)))

	case stream.ToolUseWaiting:
		err = p.println(toolStyle.Render("[TOOL USE WAITING]"))

	case stream.AssistantMessage:
		p.streamed = ""
		p.midLine = false
		err = p.println("\n" + messageStyle.Render("[MESSAGE] ") + p.messageBody(e.Content))

	case stream.ToolResult:
		err = p.toolResult(e)

	case stream.ParseError:
		err = p.println(errorStyle.Render("[PARSE ERROR] " + e.ErrorMessage))

	case stream.StreamEnd:
		p.streamed = ""
		if p.midLine {
			p.midLine = false
			_, err = fmt.Fprintln(p.w)
		}

	default:
		err = fmt.Errorf("unhandled event %T", ev)
	}

	return err
}

func (p *Pretty) chunk(e stream.AssistantChunk) error {
	if !p.opts.ShowChunks {
		return nil
	}

	delta, ok := strings.CutPrefix(e.FullText, p.streamed)
	if !ok {
		// An out of order chunk rewrote earlier text; start over on a new line.
		delta = "\n" + e.FullText
	}
	p.streamed = e.FullText
	if delta == "" {
		return nil
	}
	p.midLine = true

	_, err := io.WriteString(p.w, cliui.DimStyle.Render(delta))
	return err
}

func (p *Pretty) messageBody(content string) string {
	if formatted := FormatXML(content); formatted != content {
		return formatted
	}

	if p.opts.Markdown {
		if rendered, err := cliui.RenderMarkdown(content); err == nil {
			return "\n" + strings.TrimRight(rendered, "\n")
		}
	}
	return content
}

func (p *Pretty) toolResult(e stream.ToolResult) error {
	name := boldStyle.Render(fmt.Sprintf("%q", e.ToolName))

	if !e.Success {
		errText := "{}"
		if e.Error != nil && *e.Error != "" {
			b, _ := json.Marshal(*e.Error)
			errText = string(b)
		}
		return p.println(errorStyle.Render("[TOOL RESULT] ") + name + errorStyle.Render(" | Failure! Error: ") + FormatXML(errText))
	}

	return p.println(messageStyle.Render("[TOOL RESULT] ") + name + messageStyle.Render(" | Success! Output: ") + outputPreview(e.Output))
}

// outputPreview shortens tool output for a single status line. XML output is
// shown indented in full.
func outputPreview(output any) string {
	text := "{}"
	if !isEmpty(output) {
		if b, err := json.Marshal(output); err == nil {
			text = string(b)
		}
	}

	if formatted := FormatXML(text); formatted != text {
		return formatted
	}
	if text == "{}" {
		return "No answer found."
	}
	if len(text) > outputPreviewLen {
		return utils.Truncate(text, outputPreviewLen)
	}
	return text
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case json.Number:
		return t.String() == "0"
	default:
		return false
	}
}

func (p *Pretty) println(s string) error {
	if p.midLine {
		// Finish the streamed text line before anything else is printed.
		s = "\n" + s
		p.midLine = false
	}
	_, err := fmt.Fprintln(p.w, s)
	return err
}

// JSON writes each event as one JSON object per line.
type JSON struct {
	w io.Writer
}

// NewJSON returns a JSON lines renderer writing to w.
func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

// Handle writes ev.
func (j *JSON) Handle(ev stream.Event) error {
	b, err := stream.Marshal(ev)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = j.w.Write(b)
	return err
}
