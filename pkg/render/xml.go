package render

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bracketStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	tagNameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	attrNameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	attrValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	tagRegex  = regexp.MustCompile(`<(/?)([^\s/>]+)([^>]*?)(/?)>`)
	attrRegex = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_-]*)=(["'])([^"']*)(["'])`)
)

// FormatXML indents content when it is a well-formed XML fragment, such as
// the tool call markup inside assistant messages, and returns it on a fresh
// line. Anything else is returned unchanged.
func FormatXML(content string) string {
	indented, ok := indentXML(content)
	if !ok {
		return content
	}

	lines := strings.Split(indented, "\n")
	for i, line := range lines {
		lines[i] = highlightTags(line)
	}
	return "\n" + strings.Join(lines, "\n")
}

func indentXML(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "<") || !strings.HasSuffix(trimmed, ">") {
		return "", false
	}

	dec := xml.NewDecoder(strings.NewReader(trimmed))
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", false
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if len(bytes.TrimSpace(t)) == 0 {
				continue
			}
			if depth == 0 {
				return "", false
			}
			tok = xml.CharData(bytes.TrimSpace(t))
		case xml.ProcInst, xml.Comment, xml.Directive:
			continue
		}

		if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
			return "", false
		}
	}

	if err := enc.Flush(); err != nil || roots != 1 || depth != 0 {
		return "", false
	}
	return buf.String(), true
}

func highlightTags(line string) string {
	return tagRegex.ReplaceAllStringFunc(line, func(tag string) string {
		m := tagRegex.FindStringSubmatch(tag)
		closing, name, attrs, selfClosing := m[1], m[2], m[3], m[4]

		var b strings.Builder
		b.WriteString(bracketStyle.Render("<" + closing))
		b.WriteString(tagNameStyle.Render(name))
		if attrs != "" {
			b.WriteString(attrRegex.ReplaceAllStringFunc(attrs, func(attr string) string {
				a := attrRegex.FindStringSubmatch(attr)
				return attrNameStyle.Render(a[1]) + "=" + a[2] + attrValueStyle.Render(a[3]) + a[4]
			}))
		}
		b.WriteString(bracketStyle.Render(selfClosing + ">"))
		return b.String()
	})
}
