// Package extract recovers a JSON object from noisy generative output.
// Model responses routinely wrap JSON in markdown fences, prefix it with
// prose, truncate it mid-structure, or use single quotes; this package
// strips, slices, and repairs before giving up. Pure text transform: no
// I/O, deterministic for a given input.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DefaultWrapKey is the object key a bare top-level array is wrapped under
// when the caller does not supply one.
const DefaultWrapKey = "items"

// snippetLen bounds the diagnostic excerpt carried by
// UnrecoverableOutputError.
const snippetLen = 500

// UnrecoverableOutputError means no parseable JSON could be recovered from
// the text even after repair. Carries the head of the original output for
// diagnostics.
type UnrecoverableOutputError struct {
	Snippet string
	Err     error
}

func (e *UnrecoverableOutputError) Error() string {
	return fmt.Sprintf("unrecoverable model output: %v (text starts: %.80q)", e.Err, e.Snippet)
}

func (e *UnrecoverableOutputError) Unwrap() error { return e.Err }

var (
	// Missing comma between adjacent object/array values.
	missingObjComma = regexp.MustCompile(`\}(\s*)\{`)
	missingArrComma = regexp.MustCompile(`\](\s*)\[`)
	// Single-quoted keys and values. Best effort: does not honor escapes.
	singleQuoted = regexp.MustCompile(`'([^'\\]*)'`)
)

// JSON extracts a JSON object from raw model output. A top-level array is
// wrapped as {wrapKey: array}; wrapKey "" means DefaultWrapKey. The error,
// when non-nil, is always an *UnrecoverableOutputError.
func JSON(raw, wrapKey string) (map[string]any, error) {
	if wrapKey == "" {
		wrapKey = DefaultWrapKey
	}

	s := stripFences(raw)
	s = stripJSONToken(s)
	s = bracketSpan(s)

	if obj, err := decode(s, wrapKey); err == nil {
		return obj, nil
	}

	s = missingObjComma.ReplaceAllString(s, "},${1}{")
	s = missingArrComma.ReplaceAllString(s, "],${1}[")
	s = singleQuoted.ReplaceAllString(s, `"$1"`)
	s = repair(s)

	obj, err := decode(s, wrapKey)
	if err != nil {
		return nil, &UnrecoverableOutputError{Snippet: head(raw, snippetLen), Err: err}
	}
	return obj, nil
}

// stripFences removes markdown code-fence markers, with or without a
// language tag, including an unterminated opening fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		// Drop a language tag on the fence line.
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && isFenceTag(s[:nl]) {
			s = s[nl+1:]
		}
		if j := strings.LastIndex(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	return strings.TrimSpace(s)
}

func isFenceTag(line string) bool {
	line = strings.TrimSpace(line)
	for _, r := range line {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return true
}

// stripJSONToken drops a stray literal "json" left in front of the payload
// after fence stripping.
func stripJSONToken(s string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(s, "json"))
	if rest != s && (strings.HasPrefix(rest, "{") || strings.HasPrefix(rest, "[")) {
		return rest
	}
	return s
}

// bracketSpan slices to the span from the first opening bracket to its
// matching last closer. Truncated output with no closer is sliced to the
// end of the string for the repair pass to finish.
func bracketSpan(s string) string {
	objAt := strings.IndexByte(s, '{')
	arrAt := strings.IndexByte(s, '[')
	open := objAt
	closer := byte('}')
	if open < 0 || (arrAt >= 0 && arrAt < open) {
		open = arrAt
		closer = ']'
	}
	if open < 0 {
		return s
	}
	if end := strings.LastIndexByte(s, closer); end > open {
		return s[open : end+1]
	}
	return s[open:]
}

// decode parses s and normalizes the result to an object, wrapping a
// top-level array under wrapKey.
func decode(s, wrapKey string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case []any:
		return map[string]any{wrapKey: t}, nil
	default:
		return nil, fmt.Errorf("top-level value is %T, not object or array", v)
	}
}

// repair closes what truncation left open: a single left-to-right scan
// tracks the stack of expected closing brackets and whether the scanner is
// inside a quoted string. At end of input it closes an open string, strips
// one trailing comma, and closes remaining brackets in LIFO order.
func repair(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	out := b.String()
	if trimmed := strings.TrimRight(out, " \t\r\n"); strings.HasSuffix(trimmed, ",") {
		out = strings.TrimSuffix(trimmed, ",")
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return out
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
