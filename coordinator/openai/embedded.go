package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"chefai/tools"
)

// parseEmbeddedToolCalls scans text for JSON objects shaped like
// {"tool_calls":[{"name":..., "arguments":{...}}]} and returns the remaining
// text plus the calls found. Objects that are not tool calls stay in the text.
func parseEmbeddedToolCalls(text string) (string, []tools.Call) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", nil
	}

	var content strings.Builder
	var calls []tools.Call

	i := 0
	for i < len(s) {
		start := strings.IndexByte(s[i:], '{')
		if start == -1 {
			content.WriteString(s[i:])
			break
		}
		start += i
		content.WriteString(s[i:start])

		end, ok := matchingBrace(s, start)
		if !ok {
			content.WriteString(s[start:])
			break
		}

		obj := s[start : end+1]
		var shape struct {
			ToolCalls []struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
				Input     json.RawMessage `json:"input"`
			} `json:"tool_calls"`
		}
		if err := json.Unmarshal([]byte(obj), &shape); err == nil && len(shape.ToolCalls) > 0 {
			for _, tc := range shape.ToolCalls {
				args := tc.Arguments
				if len(args) == 0 {
					args = tc.Input
				}
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				calls = append(calls, tools.Call{
					ID:        fmt.Sprintf("embedded_%d", len(calls)+1),
					Name:      tc.Name,
					Arguments: args,
				})
			}
		} else {
			content.WriteString(obj)
		}
		i = end + 1
	}

	return strings.TrimSpace(content.String()), calls
}

// matchingBrace returns the index of the brace closing the object at start,
// skipping braces inside JSON strings.
func matchingBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for j := start; j < len(s); j++ {
		c := s[j]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return j, true
			}
		}
	}
	return 0, false
}
