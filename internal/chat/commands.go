package chat

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const helpText = `**Commands**

| Command | Description |
|---|---|
| /help | show this message |
| /goal <description> | create a new goal |
| /goals | list goals and their task progress |
| /status | router and goal queue status |
| /cost | spending summary |
| /clear | clear the chat history |
| /exit, /quit | leave the chat |

Anything else is sent to Archi as a message.`

func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	cmd := fields[0]
	arg := strings.TrimSpace(strings.TrimPrefix(input, cmd))

	switch cmd {
	case "/exit", "/quit":
		return m, tea.Quit

	case "/clear":
		m.history = nil
		m.viewport.SetContent("")
		return m, nil

	case "/help":
		return m.reply(helpText)

	case "/goal":
		return m.createGoal(arg)

	case "/goals":
		return m.listGoals()

	case "/status":
		return m.showStatus()

	case "/cost":
		return m.showCost()

	default:
		return m.reply(fmt.Sprintf("unknown command %q, try /help", cmd))
	}
}

// reply appends an assistant message directly, without going through
// the router, for commands that answer from local state.
func (m Model) reply(content string) (tea.Model, tea.Cmd) {
	m.history = append(m.history, message{role: "assistant", content: content, time: time.Now()})
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	return m, nil
}

func (m Model) createGoal(description string) (tea.Model, tea.Cmd) {
	if description == "" {
		return m.reply("usage: /goal <description>")
	}
	if m.deps.GoalStore == nil {
		return m.reply("no goal store attached")
	}
	goal := m.deps.GoalStore.CreateGoal(description, "user request via chat", 5)
	return m.reply(fmt.Sprintf("Created goal `%s`: %s", goal.ID, goal.Description))
}

func (m Model) listGoals() (tea.Model, tea.Cmd) {
	if m.deps.GoalStore == nil {
		return m.reply("no goal store attached")
	}
	status := m.deps.GoalStore.GetStatus()
	if len(status.Goals) == 0 {
		return m.reply("No goals yet. Create one with /goal <description>.")
	}
	var sb strings.Builder
	sb.WriteString("**Goals**\n\n")
	for _, g := range status.Goals {
		sb.WriteString(fmt.Sprintf("- `%s` %s (%d tasks, %.0f%% complete)\n", g.ID, g.Description, len(g.Tasks), g.CompletionPercentage))
	}
	return m.reply(sb.String())
}

func (m Model) showStatus() (tea.Model, tea.Cmd) {
	var sb strings.Builder
	sb.WriteString("**Status**\n\n")
	if m.deps.GoalStore != nil {
		s := m.deps.GoalStore.GetStatus()
		sb.WriteString(fmt.Sprintf("- goals: %d active / %d total\n", s.ActiveGoals, s.TotalGoals))
		sb.WriteString(fmt.Sprintf("- tasks: %d pending, %d in progress, %d completed\n", s.PendingTasks, s.InProgressTasks, s.CompletedTasks))
	}
	if m.deps.Router != nil {
		local := "unavailable"
		if m.deps.Router.LocalAvailable() {
			local = "ready"
		}
		sb.WriteString(fmt.Sprintf("- local model: %s\n", local))
	}
	if m.deps.Loop != nil {
		sb.WriteString("- agent loop: attached\n")
	} else {
		sb.WriteString("- agent loop: not attached (chat-only session)\n")
	}
	return m.reply(sb.String())
}

func (m Model) showCost() (tea.Model, tea.Cmd) {
	if m.deps.Ledger == nil {
		return m.reply("no budget ledger attached")
	}
	today := m.deps.Ledger.Summary("today")
	all := m.deps.Ledger.Summary("all")
	return m.reply(fmt.Sprintf("**Cost summary**\n\n- today: $%.4f\n- all time: $%.4f (%d calls)",
		today.TotalCost, all.TotalCost, all.Calls))
}
