package executor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"archi/internal/goals"
)

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	bareObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// stepAction is the structured object the planner returns for each step:
// {action_name, arguments, reasoning} or the sentinel action "done".
type stepAction struct {
	Name      string                 `json:"action_name"`
	Arguments map[string]interface{} `json:"arguments"`
	Reasoning string                 `json:"reasoning"`
}

const knownActions = `read_file, create_file, append_file, list_files, web_search, fetch_webpage, write_source, run_python, think, done`

func buildStepPrompt(task *goals.Task, state *planState) string {
	var history strings.Builder
	if len(state.Steps) == 0 {
		history.WriteString("(no steps taken yet)")
	}
	for _, s := range state.Steps {
		status := "ok"
		if s.Error != "" {
			status = "error: " + s.Error
		}
		fmt.Fprintf(&history, "Step %d: %s(%v) -> %s\n", s.Index, s.ActionName, s.Arguments, status)
	}

	return fmt.Sprintf(`You are working on this task:

Task: %s
Goal context: %s

Known actions: %s

Steps taken so far:
%s

What is the single next action? Respond with ONLY a JSON object:
{
  "action_name": "...",
  "arguments": {},
  "reasoning": "one sentence"
}

When the task is complete, use action_name "done" with arguments.summary set
to a short description of what was accomplished.`, task.Description, task.GoalID, knownActions, history.String())
}

// extractAction pulls a stepAction out of the planner's free-form
// response: reasoning-model scratchpad markup first, then a direct
// parse, a markdown code fence, and finally the first bare-braced
// substring.
func extractAction(text string) (stepAction, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return stepAction{}, false
	}

	if strings.Contains(text, "<think>") {
		text = strings.TrimSpace(thinkBlockRe.ReplaceAllString(text, ""))
		text = strings.TrimSpace(strings.ReplaceAll(text, "</think>", ""))
	}
	if text == "" {
		return stepAction{}, false
	}

	if a, ok := tryParseAction(text); ok {
		return a, true
	}
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		if a, ok := tryParseAction(strings.TrimSpace(m[1])); ok {
			return a, true
		}
	}
	if m := bareObjectRe.FindString(text); m != "" {
		if a, ok := tryParseAction(m); ok {
			return a, true
		}
	}
	return stepAction{}, false
}

func tryParseAction(text string) (stepAction, bool) {
	var a stepAction
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return stepAction{}, false
	}
	if a.Name == "" {
		return stepAction{}, false
	}
	return a, true
}

func stringArg(args map[string]interface{}, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
