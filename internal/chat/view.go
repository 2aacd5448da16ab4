package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHistory() string {
	var sb strings.Builder
	for _, msg := range m.history {
		if msg.role == "user" {
			sb.WriteString(m.styles.UserLabel.Render("You") + "\n")
			sb.WriteString(m.styles.UserBody.Render(msg.content))
			sb.WriteString("\n\n")
			continue
		}
		sb.WriteString(m.styles.AssistantLabel.Render("Archi") + "\n")
		sb.WriteString(m.renderMarkdown(msg.content))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderMarkdown renders content through glamour, falling back to the
// plain text on any render failure or panic (glamour occasionally
// panics on malformed tables in model output).
func (m Model) renderMarkdown(content string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = content
		}
	}()
	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content
}

func (m Model) View() string {
	if !m.ready {
		return "Starting Archi...\n"
	}

	header := m.renderHeader()
	content := m.styles.Content.Render(m.viewport.View())

	if m.isLoading {
		content += "\n" + m.spinner.View() + " thinking..."
	}
	if m.err != nil {
		content += "\n" + m.styles.Error.Render("error: "+m.err.Error())
	}

	input := m.styles.Input.Render(m.textinput.View())
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, content, input, footer)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" Archi ")
	status := m.styles.Success.Render("ready")
	if m.isLoading {
		status = m.styles.Warning.Render("thinking")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", status)
}

func (m Model) renderFooter() string {
	ts := time.Now().Format("15:04")
	return m.styles.Footer.Render(fmt.Sprintf("%s  Enter: send  /help: commands  Ctrl+C: exit", ts))
}
