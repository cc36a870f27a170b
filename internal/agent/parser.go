// Package agent drives the invoke-parse-execute cycle that turns a natural
// language task into browser tool executions. The model signals invocations
// with a plain-text protocol:
//
//	USE_TOOL: <tool-name>
//	ARGS: <json-object>
//
// repeated per invocation. A reply without the marker ends the run.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/webpilot/internal/tools"
)

const (
	useToolMarker = "USE_TOOL:"
	argsMarker    = "ARGS:"
)

// ToolCall is one invocation parsed from an assistant reply.
type ToolCall struct {
	Name string
	Args tools.Args

	// Note carries the parse error for a malformed ARGS payload. The call
	// still dispatches with empty args so the note reaches the transcript as
	// a ❌ outcome and the model can correct course.
	Note string
}

// ParseToolCalls extracts tool invocations from an assistant reply. The scan
// is case-sensitive on the markers, lenient on whitespace, and tolerant of
// prose around the blocks. A reply without USE_TOOL yields nil, which the
// loop reads as the completion signal.
func ParseToolCalls(text string) []ToolCall {
	var calls []ToolCall
	rest := text
	for {
		idx := strings.Index(rest, useToolMarker)
		if idx < 0 {
			break
		}
		rest = rest[idx+len(useToolMarker):]

		name := rest
		if eol := strings.IndexByte(rest, '\n'); eol >= 0 {
			name = rest[:eol]
			rest = rest[eol+1:]
		} else {
			rest = ""
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		call := ToolCall{Name: name, Args: tools.Args{}}

		// The ARGS block belongs to this call only if it precedes the next
		// USE_TOOL marker. A call without one executes with empty args.
		argsIdx := strings.Index(rest, argsMarker)
		if nextTool := strings.Index(rest, useToolMarker); argsIdx >= 0 && (nextTool < 0 || argsIdx < nextTool) {
			after := rest[argsIdx+len(argsMarker):]
			if obj, n := scanJSONObject(after); n > 0 {
				if err := json.Unmarshal([]byte(obj), &call.Args); err != nil {
					call.Args = tools.Args{}
					call.Note = fmt.Sprintf("❌ Failed to parse args for %s: %s", name, strings.TrimSpace(obj))
				}
				rest = after[n:]
			} else {
				line := after
				if eol := strings.IndexByte(line, '\n'); eol >= 0 {
					line = line[:eol]
				}
				call.Note = fmt.Sprintf("❌ Failed to parse args for %s: %s", name, strings.TrimSpace(line))
				rest = after
			}
		}

		calls = append(calls, call)
	}
	return calls
}

// scanJSONObject returns the brace-balanced JSON object at the start of s,
// ignoring leading whitespace, and the offset just past its closing brace.
// The scan is string-aware so braces inside quoted values do not count. An
// unterminated object returns the remaining text so the decoder can report
// it; a zero second return means no object starts here.
func scanJSONObject(s string) (string, int) {
	start := 0
	for start < len(s) {
		switch s[start] {
		case ' ', '\t', '\r', '\n':
			start++
			continue
		}
		break
	}
	if start == len(s) || s[start] != '{' {
		return "", 0
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], i + 1
			}
		}
	}
	return s[start:], len(s)
}
