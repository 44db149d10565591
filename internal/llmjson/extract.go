// Package llmjson recovers a single JSON object from free-form model output.
package llmjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fenceTag = regexp.MustCompile(`^[A-Za-z0-9_-]*\s*\n`)

// ParseError is returned when no attempt recovers an object.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "llmjson: no parseable object: " + e.Err.Error()
	}
	return "llmjson: no parseable object"
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractObject returns the first JSON object found in text.
// It accepts fenced blocks, raw objects, arrays whose first element is an object,
// and objects embedded in surrounding prose.
func ExtractObject(text string) (map[string]any, error) {
	raw, err := extractRaw(text)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ParseError{Text: text, Err: err}
	}
	return out, nil
}

// Decode extracts the object from text and unmarshals it into v.
func Decode(text string, v any) error {
	raw, err := extractRaw(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &ParseError{Text: text, Err: err}
	}
	return nil
}

func extractRaw(text string) (json.RawMessage, error) {
	t := stripFence(strings.TrimSpace(text))

	if raw, ok := direct(t); ok {
		return raw, nil
	}

	return firstObject(text, t)
}

// firstObject decodes from each '{' in turn and returns the first balanced object.
// Text after the object is ignored.
func firstObject(text, t string) (json.RawMessage, error) {
	var lastErr error
	for i := strings.IndexByte(t, '{'); i >= 0; {
		var raw json.RawMessage
		err := json.NewDecoder(strings.NewReader(t[i:])).Decode(&raw)
		if err == nil && firstByte(raw) == '{' {
			return raw, nil
		}
		lastErr = err
		next := strings.IndexByte(t[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, &ParseError{Text: text, Err: lastErr}
}

// direct parses t as an object, or as an array whose first element is an object.
func direct(t string) (json.RawMessage, bool) {
	var v json.RawMessage
	if err := json.Unmarshal([]byte(t), &v); err != nil {
		return nil, false
	}
	switch firstByte(v) {
	case '{':
		return v, true
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(v, &arr); err != nil || len(arr) == 0 {
			return nil, false
		}
		if firstByte(arr[0]) == '{' {
			return arr[0], true
		}
	}
	return nil, false
}

// stripFence returns the body of a leading ``` block, minus an optional language tag.
func stripFence(t string) string {
	if !strings.HasPrefix(t, "```") {
		return t
	}
	parts := strings.SplitN(t, "```", 3)
	if len(parts) < 2 {
		return t
	}
	body := parts[1]
	if loc := fenceTag.FindStringIndex(body); loc != nil {
		body = body[loc[1]:]
	}
	return strings.TrimSpace(body)
}

func firstByte(raw []byte) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

// String returns v as a trimmed string. Non-string values are formatted with %v.
func String(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Bool reads a JSON boolean or the strings "true"/"false". Anything else is false.
func Bool(m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}
