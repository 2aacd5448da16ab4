// Package chat implements the Interaction Source: a terminal chat loop
// wired to the Model Router, Goal Store, Budget Ledger, Agent Loop, and
// Safety Controller.
package chat

import "github.com/charmbracelet/lipgloss"

// Theme is Archi's terminal color palette. Unlike a branded product UI,
// one palette is enough here; light/dark detection is left to the
// terminal itself.
type Theme struct {
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

func defaultTheme() Theme {
	return Theme{
		Primary: lipgloss.Color("#101F38"),
		Accent:  lipgloss.Color("#8BC34A"),
		Muted:   lipgloss.Color("#6b7280"),
		Success: lipgloss.Color("#8BC34A"),
		Warning: lipgloss.Color("#FFC107"),
		Error:   lipgloss.Color("#e53935"),
	}
}

// styles holds the lipgloss styles the view uses.
type styles struct {
	Theme Theme

	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style
	Input   lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserBody       lipgloss.Style

	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Badge   lipgloss.Style
}

func newStyles(theme Theme) styles {
	return styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Bold(true).
			Padding(0, 2),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			MarginTop(1),

		Content: lipgloss.NewStyle().Padding(1, 2),

		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Accent).
			Padding(0, 1),

		UserLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary).
			MarginTop(1),

		AssistantLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Accent).
			MarginTop(1),

		UserBody: lipgloss.NewStyle(),

		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Success: lipgloss.NewStyle().Foreground(theme.Success),
		Warning: lipgloss.NewStyle().Foreground(theme.Warning),
		Error:   lipgloss.NewStyle().Foreground(theme.Error),
		Badge:   lipgloss.NewStyle().Foreground(theme.Muted).Padding(0, 1),
	}
}
