package tools

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Call is one tool invocation in the form {"tool": "<name>", "args": {...}}.
type Call struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

var fencedJSONRegex = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// ParseToolCalls extracts tool calls from model output. Fenced ```json blocks
// take priority and may hold a single call or an array of calls. Only when no
// fenced call is found are inline lines starting with '{' and mentioning
// "tool" considered. Fragments that do not parse are ignored.
func ParseToolCalls(text string) []Call {
	var calls []Call
	for _, m := range fencedJSONRegex.FindAllStringSubmatch(text, -1) {
		calls = append(calls, decodeCalls(strings.TrimSpace(m[1]))...)
	}
	if len(calls) > 0 {
		return calls
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") || !strings.Contains(line, `"tool"`) {
			continue
		}
		calls = append(calls, decodeCalls(line)...)
	}
	return calls
}

func decodeCalls(raw string) []Call {
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var many []Call
		if err := json.Unmarshal([]byte(raw), &many); err != nil {
			return nil
		}
		out := many[:0]
		for _, c := range many {
			if c.Tool != "" {
				out = append(out, c)
			}
		}
		return out
	}
	var one Call
	if err := json.Unmarshal([]byte(raw), &one); err != nil || one.Tool == "" {
		return nil
	}
	return []Call{one}
}

// stringArg returns args[key] when it is a string.
func (c Call) stringArg(key string) (string, bool) {
	v, ok := c.Args[key].(string)
	return v, ok
}
