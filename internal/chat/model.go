package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"archi/internal/agentloop"
	"archi/internal/budget"
	"archi/internal/goals"
	"archi/internal/logging"
	"archi/internal/router"
	"archi/internal/safety"
	"archi/internal/tools"
)

// message is a single rendered line of chat history.
type message struct {
	role    string // "user" or "assistant"
	content string
	time    time.Time
}

// Deps bundles the already-constructed components the Interaction
// Source talks to. All fields are required except Loop, which may be
// nil when the chat runs standalone (e.g. in tests). Loop is consulted
// only by /status, to report whether an Agent Loop is attached; the chat
// does not report user activity to it.
type Deps struct {
	Router    *router.Router
	GoalStore *goals.Store
	Ledger    *budget.Ledger
	Safety    *safety.Controller
	Registry  *tools.Registry
	Loop      *agentloop.Loop
}

// Model is the Interaction Source's bubbletea model.
type Model struct {
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    styles
	renderer  *glamour.TermRenderer

	history   []message
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool

	awaitingApproval bool
	approvalAction    safety.Action

	deps Deps
	approvals *approvalBridge
}

// responseMsg carries the assistant's reply text back into Update.
type responseMsg string

// errorMsg carries a processing failure back into Update.
type errorMsg struct{ err error }

// approvalRequestMsg asks the user to approve or deny a pending action.
type approvalRequestMsg struct{ action safety.Action }

// New builds the Interaction Source's model. The returned Model still
// needs Run to start the bubbletea program; deps.Safety's ApprovalFunc
// is registered here so human_approval actions raised by the Agent
// Loop, not just chat-originated ones, surface to this terminal.
func New(deps Deps) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask Archi anything... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.CharLimit = 0
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.SetContent("")

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	st := newStyles(defaultTheme())

	bridge := &approvalBridge{}

	m := Model{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		styles:    st,
		renderer:  renderer,
		deps:      deps,
		approvals: bridge,
	}

	if deps.Safety != nil {
		deps.Safety.SetApprovalFunc(bridge.request)
	}

	return m
}

// Run starts the bubbletea program and blocks until the user exits.
func Run(ctx context.Context, deps Deps) error {
	m := New(deps)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.approvals.setProgram(p)

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var tiCmd, vpCmd, spCmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if !m.isLoading {
				return m.handleSubmit()
			}
		}

		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight, footerHeight, inputHeight, padding := 3, 2, 3, 2
		contentHeight := msg.Height - headerHeight - footerHeight - inputHeight - padding
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, contentHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = contentHeight
		}
		m.textinput.Width = msg.Width - 8

		if m.renderer != nil {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(msg.Width-8),
			)
		}

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case responseMsg:
		m.isLoading = false
		m.history = append(m.history, message{role: "assistant", content: string(msg), time: time.Now()})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case errorMsg:
		m.isLoading = false
		m.err = msg.err

	case approvalRequestMsg:
		m.awaitingApproval = true
		m.approvalAction = msg.action
		m.textinput.Placeholder = "approve? (y/n)"
		m.history = append(m.history, message{
			role:    "assistant",
			content: renderApprovalRequest(msg.action),
			time:    time.Now(),
		})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}
	m.textinput.Reset()

	if m.awaitingApproval {
		return m.resolveApproval(input)
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	m.history = append(m.history, message{role: "user", content: input, time: time.Now()})
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()

	m.isLoading = true
	return m, tea.Batch(m.spinner.Tick, m.processInput(input))
}

func (m Model) resolveApproval(input string) (tea.Model, tea.Cmd) {
	approved := strings.EqualFold(input, "y") || strings.EqualFold(input, "yes")
	m.awaitingApproval = false
	m.textinput.Placeholder = "Ask Archi anything... (Enter to send, Ctrl+C to exit)"

	m.approvals.resolve(approved)

	reply := "Denied."
	if approved {
		reply = "Approved."
	}
	m.history = append(m.history, message{role: "assistant", content: reply, time: time.Now()})
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	return m, nil
}

func renderApprovalRequest(action safety.Action) string {
	var sb strings.Builder
	sb.WriteString("**Approval needed**\n\n")
	sb.WriteString("action: `" + action.Type + "`\n\n")
	if action.Reasoning != "" {
		sb.WriteString(action.Reasoning + "\n\n")
	}
	sb.WriteString("Reply `y` to approve or `n` to deny.")
	return sb.String()
}

// approvalBridge lets a safety.ApprovalFunc, invoked from whatever
// goroutine the Safety Controller runs on, surface a question inside
// the running bubbletea program and block for the user's answer.
// tea.Program.Send is the documented way to inject an external event
// into a running program; this is the only channel an ApprovalFunc
// callback (which has no access to the Update loop) has to reach it.
type approvalBridge struct {
	mu      sync.Mutex
	program *tea.Program
	waiting chan bool
}

func (b *approvalBridge) setProgram(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = p
}

func (b *approvalBridge) request(ctx context.Context, action safety.Action) bool {
	b.mu.Lock()
	p := b.program
	ch := make(chan bool, 1)
	b.waiting = ch
	b.mu.Unlock()

	if p == nil {
		logging.ChatWarn("approval requested with no attached terminal, denying: %s", action.Type)
		return false
	}
	p.Send(approvalRequestMsg{action: action})

	select {
	case v := <-ch:
		return v
	case <-ctx.Done():
		return false
	}
}

func (b *approvalBridge) resolve(approved bool) {
	b.mu.Lock()
	ch := b.waiting
	b.waiting = nil
	b.mu.Unlock()
	if ch != nil {
		ch <- approved
	}
}
