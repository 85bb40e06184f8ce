package stream

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
)

// envelope is a decoded JSON object. Numbers are kept as json.Number so that
// values pass through without float rounding.
type envelope map[string]any

// present reports whether key is set to a non-null value.
func (e envelope) present(key string) bool {
	v, ok := e[key]
	return ok && v != nil
}

// str returns the value of key when it is a JSON string.
func (e envelope) str(key string) string {
	s, _ := e[key].(string)
	return s
}

// text returns the value of key as text: strings verbatim, anything else as
// compact JSON.
func (e envelope) text(key string) string {
	return rawText(e[key])
}

// parseJSON decodes exactly one JSON value from s.
func parseJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// parseEnvelope accepts only non-empty JSON objects as payloads.
func parseEnvelope(payload string) (envelope, bool) {
	v, err := parseJSON(payload)
	if err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil, false
	}
	return envelope(obj), true
}

// contentObject resolves a "content" field into an object. The field is
// normally a JSON-encoded string; an embedded object is accepted as is.
// Anything else yields nil.
func contentObject(v any) envelope {
	switch c := v.(type) {
	case map[string]any:
		return envelope(c)
	case string:
		parsed, err := parseJSON(c)
		if err != nil {
			return nil
		}
		obj, _ := parsed.(map[string]any)
		return envelope(obj)
	default:
		return nil
	}
}

// rawText renders a JSON value as text.
func rawText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// truthy follows JSON truthiness: null, false, 0, "" and empty containers
// are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

// sequenceOf reads a chunk sequence number. Numeric strings are accepted,
// anything else counts as zero.
func sequenceOf(v any) int {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		if f, err := t.Float64(); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i
		}
	case float64:
		return int(t)
	case int:
		return t
	}
	return 0
}
