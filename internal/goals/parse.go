package goals

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	bareArrayRe  = regexp.MustCompile(`(?s)\[.*\]`)
)

// extractJSONArray pulls a JSON array of task objects out of a planner's
// free-form response: reasoning-model scratchpad markup first, then a
// direct parse, a markdown code fence, and finally the first bare
// bracketed substring. Returns nil if nothing parses, so a prose-only
// response never aborts decomposition outright.
func extractJSONArray(text string) []map[string]interface{} {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.Contains(text, "<think>") {
		text = strings.TrimSpace(thinkBlockRe.ReplaceAllString(text, ""))
		text = strings.TrimSpace(strings.ReplaceAll(text, "</think>", ""))
	}
	if text == "" {
		return nil
	}

	if arr, ok := tryParseArray(text); ok {
		return arr
	}

	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		if arr, ok := tryParseArray(strings.TrimSpace(m[1])); ok {
			return arr
		}
	}

	if m := bareArrayRe.FindString(text); m != "" {
		if arr, ok := tryParseArray(m); ok {
			return arr
		}
	}

	return nil
}

func tryParseArray(text string) ([]map[string]interface{}, bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		var obj map[string]interface{}
		if err := json.Unmarshal(r, &obj); err != nil {
			continue
		}
		out = append(out, obj)
	}
	return out, true
}
