package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"archi/internal/logging"
	"archi/internal/router"
	"archi/internal/safety"
)

const systemPrompt = `You are Archi, an autonomous AI agent with the ability to create, edit, append, and delete files in a workspace, and to manage goals. Be helpful, direct, and concise. Confirm actions when you take them.`

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
var firstObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// fileActionIntent is the JSON shape the router is asked to classify a
// message into: either a file action or a plain conversational reply.
type fileActionIntent struct {
	Action  string `json:"action"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Reply   string `json:"response"`
}

// fileActions are the intents processInput recognizes and will route
// through the Safety Controller and Tool Registry directly, rather
// than waiting for the Agent Loop's own tick.
var fileActions = map[string]bool{
	"create_file": true,
	"append_file": true,
	"edit_file":   true,
	"delete_file": true,
}

// processInput classifies free text into a file action or a
// conversational reply, executes a recognized action immediately
// through the Safety Controller and Tool Registry, and otherwise
// answers as Archi.
func (m Model) processInput(input string) tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		ctx := context.Background()

		if deps.Router == nil {
			return errorMsg{fmt.Errorf("no router attached")}
		}

		intentPrompt := fmt.Sprintf(`%s

Analyze this user message. Respond with ONLY valid JSON, no other text.

User: %s

If the user wants to create, write, append to, edit, or delete a file, respond with one of:
{"action": "create_file", "path": "relative/path.txt", "content": "file content here"}
{"action": "append_file", "path": "relative/path.txt", "content": "text to append"}
{"action": "edit_file", "path": "relative/path.txt", "old": "text to find", "new": "replacement text"}
{"action": "delete_file", "path": "relative/path.txt"}

If the user is just asking a question or chatting, respond:
{"action": "chat", "response": "your helpful reply here"}

Respond with ONLY the JSON object, nothing else.`, systemPrompt, input)

		intentResult := deps.Router.Generate(ctx, intentPrompt, 400, 0.2, router.Flags{PreferLocal: true})
		if intentResult.Error != "" {
			return errorMsg{fmt.Errorf("couldn't process that: %s", intentResult.Error)}
		}

		intent, ok := extractIntent(intentResult.Text)
		if !ok || intent.Action == "" || intent.Action == "chat" {
			return m.conversationalReply(ctx, input, intent)
		}

		if !fileActions[intent.Action] {
			return m.conversationalReply(ctx, input, intent)
		}

		return m.executeFileAction(ctx, intent)
	}
}

func (m Model) conversationalReply(ctx context.Context, input string, intent fileActionIntent) tea.Msg {
	if intent.Reply != "" {
		return responseMsg(intent.Reply)
	}
	convPrompt := fmt.Sprintf("%s\n\nUser: %s\n\nRespond naturally as Archi.", systemPrompt, input)
	conv := m.deps.Router.Generate(ctx, convPrompt, 500, 0.7, router.Flags{PreferLocal: true})
	if conv.Error != "" {
		return errorMsg{fmt.Errorf("couldn't respond: %s", conv.Error)}
	}
	text := strings.TrimSpace(conv.Text)
	if text == "" {
		text = "I'm not sure how to respond to that."
	}
	return responseMsg(text)
}

func (m Model) executeFileAction(ctx context.Context, intent fileActionIntent) tea.Msg {
	if intent.Path == "" {
		return responseMsg("I'd do that, but I need a path. Please specify a filename.")
	}

	params := map[string]any{"path": intent.Path}
	switch intent.Action {
	case "create_file", "append_file":
		params["content"] = intent.Content
	case "edit_file":
		params["old_text"] = intent.Old
		params["new_text"] = intent.New
	}

	action := safety.Action{
		Type:       intent.Action,
		Parameters: params,
		Confidence: 0.8,
		Reasoning:  "user requested via chat",
	}

	if m.deps.Safety == nil || m.deps.Registry == nil {
		return responseMsg("I can't execute file actions without an attached Safety Controller and Tool Registry.")
	}

	decision := m.deps.Safety.Authorize(ctx, &action)
	if !decision.Allowed {
		logging.ChatWarn("chat action %s denied: %s", intent.Action, decision.Reason)
		return responseMsg(fmt.Sprintf("I'm not allowed to do that: %s", decision.Reason))
	}

	result, err := m.deps.Registry.Execute(ctx, intent.Action, params)
	if err != nil {
		return responseMsg(fmt.Sprintf("I tried but hit an error: %v", err))
	}
	if !result.IsSuccess() {
		return responseMsg(fmt.Sprintf("I tried but hit an error: %v", result.Error))
	}
	return responseMsg(fmt.Sprintf("Done! %s on `%s` succeeded.", intent.Action, intent.Path))
}

// extractIntent parses a model response into a fileActionIntent,
// tolerating a raw JSON object, one wrapped in a markdown fence, or
// extra prose around the first {...} block, in that order.
func extractIntent(text string) (fileActionIntent, bool) {
	text = strings.TrimSpace(text)

	var intent fileActionIntent
	if json.Unmarshal([]byte(text), &intent) == nil {
		return intent, true
	}

	if match := jsonFenceRe.FindStringSubmatch(text); match != nil {
		if json.Unmarshal([]byte(strings.TrimSpace(match[1])), &intent) == nil {
			return intent, true
		}
	}

	if match := firstObjectRe.FindString(text); match != "" {
		if json.Unmarshal([]byte(match), &intent) == nil {
			return intent, true
		}
	}

	return fileActionIntent{}, false
}
