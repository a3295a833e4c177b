package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/janhq/jan-relay/pkg/relay/draft"
	"github.com/janhq/jan-relay/pkg/relay/orchestrator"
	"github.com/janhq/jan-relay/pkg/relay/session"
)

// relayView is the subset of the orchestrator the view drives.
type relayView interface {
	Start(ctx context.Context) *orchestrator.Notice
	Changes() <-chan orchestrator.Change
	Generate(ctx context.Context, prompt string) *orchestrator.Notice
	Publish(ctx context.Context, title string) *orchestrator.Notice
	Discard(ctx context.Context) *orchestrator.Notice
	Refresh(ctx context.Context) *orchestrator.Notice
	Next()
	Prev()
	CanContinue() bool
	CooldownRemaining() time.Duration
	Leave()
}

type inputMode int

const (
	modePrompt inputMode = iota
	modeTitle
)

type (
	changeMsg      orchestrator.Change
	changesDoneMsg struct{}
	actionDoneMsg  struct {
		action string
		notice *orchestrator.Notice
	}
)

type tuiTheme struct {
	header   lipgloss.Style
	muted    lipgloss.Style
	panel    lipgloss.Style
	selected lipgloss.Style
	ready    lipgloss.Style
	failed   lipgloss.Style
	notice   lipgloss.Style
	status   lipgloss.Style
}

func newTUITheme() tuiTheme {
	blue := lipgloss.Color("#01cdfe")
	pink := lipgloss.Color("#ff71ce")
	mint := lipgloss.Color("#05ffa1")
	muted := lipgloss.Color("#7f8c8d")
	return tuiTheme{
		header:   lipgloss.NewStyle().Bold(true).Foreground(blue),
		muted:    lipgloss.NewStyle().Foreground(muted),
		panel:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1),
		selected: lipgloss.NewStyle().Foreground(pink).Bold(true),
		ready:    lipgloss.NewStyle().Foreground(mint),
		failed:   lipgloss.NewStyle().Foreground(pink),
		notice:   lipgloss.NewStyle().Foreground(pink).Bold(true),
		status:   lipgloss.NewStyle().Foreground(blue),
	}
}

type tuiModel struct {
	ctx    context.Context
	view   relayView
	userID string

	input   textinput.Model
	spinner spinner.Model
	theme   tuiTheme
	mode    inputMode

	change   orchestrator.Change
	notice   *orchestrator.Notice
	status   string
	updated  bool
	started  bool
	quitting bool
	width    int
}

func newTUIModel(ctx context.Context, view relayView, userID string) tuiModel {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 1000
	input.Placeholder = "Describe the next panel"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	return tuiModel{
		ctx:     ctx,
		view:    view,
		userID:  userID,
		input:   input,
		spinner: sp,
		theme:   newTUITheme(),
		status:  "loading relay...",
		change:  orchestrator.Change{State: orchestrator.StateIdle, Selected: -1},
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.startCmd(),
		waitChange(m.view.Changes()),
	)
}

func (m tuiModel) startCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: "load", notice: m.view.Start(m.ctx)}
	}
}

func waitChange(ch <-chan orchestrator.Change) tea.Cmd {
	return func() tea.Msg {
		change, ok := <-ch
		if !ok {
			return changesDoneMsg{}
		}
		return changeMsg(change)
	}
}

func (m tuiModel) action(name string, fn func(ctx context.Context) *orchestrator.Notice) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: name, notice: fn(m.ctx)}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-6)
		return m, nil

	case changeMsg:
		m.change = orchestrator.Change(msg)
		m.started = true
		if msg.Notice != nil {
			m.notice = msg.Notice
		}
		if msg.Updated {
			m.updated = true
			m.status = "someone published a new panel"
		}
		return m, waitChange(m.view.Changes())

	case changesDoneMsg:
		return m, tea.Quit

	case actionDoneMsg:
		m.notice = msg.notice
		if msg.notice == nil {
			m.status = msg.action + " done"
		} else {
			m.status = msg.action + " failed"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.mode == modeTitle && msg.String() == "esc" {
			m.setMode(modePrompt)
			return m, nil
		}
		m.quitting = true
		m.view.Leave()
		return m, tea.Quit

	case "enter":
		value := strings.TrimSpace(m.input.Value())
		if m.mode == modeTitle {
			m.setMode(modePrompt)
			m.status = "publishing..."
			return m, m.action("publish", func(ctx context.Context) *orchestrator.Notice {
				return m.view.Publish(ctx, value)
			})
		}
		if value == "" || m.change.State.Busy() {
			return m, nil
		}
		if !m.view.CanContinue() {
			m.status = "this relay cannot be continued right now"
			return m, nil
		}
		m.input.Reset()
		m.updated = false
		m.status = "generating..."
		return m, m.action("generate", func(ctx context.Context) *orchestrator.Notice {
			return m.view.Generate(ctx, value)
		})

	case "ctrl+p":
		if m.change.State != orchestrator.StatePreviewing {
			return m, nil
		}
		m.setMode(modeTitle)
		return m, nil

	case "ctrl+n":
		m.view.Next()
		return m, nil

	case "ctrl+b":
		m.view.Prev()
		return m, nil

	case "ctrl+d":
		return m, m.action("discard", m.view.Discard)

	case "ctrl+r":
		m.updated = false
		return m, m.action("reload", m.view.Refresh)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) setMode(mode inputMode) {
	m.mode = mode
	m.input.Reset()
	if mode == modeTitle {
		m.input.Placeholder = "Title (optional), enter to publish, esc to cancel"
	} else {
		m.input.Placeholder = "Describe the next panel"
	}
}

func (m tuiModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.started {
		if m.notice != nil {
			return m.theme.notice.Render(m.notice.String()) + "\n" + m.theme.muted.Render("esc to quit") + "\n"
		}
		return m.spinner.View() + " " + m.status + "\n"
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	sections := []string{
		m.renderHeader(m.change.Snapshot),
		m.theme.panel.Width(width - 4).Render(m.renderSteps(m.change.Snapshot)),
	}
	if len(m.change.Candidates) > 0 {
		sections = append(sections, m.theme.panel.Width(width-4).Render(m.renderCandidates()))
	}
	sections = append(sections, m.renderStatus())
	if m.notice != nil {
		sections = append(sections, m.theme.notice.Render(m.notice.String()))
	}
	sections = append(sections, m.input.View(),
		m.theme.muted.Render("enter generate · ctrl+p publish · ctrl+n/b browse · ctrl+d discard · ctrl+r reload · esc quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m tuiModel) renderHeader(snap session.Snapshot) string {
	title := snap.Session.Title
	if title == "" {
		title = "Untitled relay"
	}
	return m.theme.header.Render(title) + m.theme.muted.Render(fmt.Sprintf("  %s · %d/%d panels · %s",
		snap.Session.ID, snap.StepCount(), snap.Session.MaxSteps, snap.Status()))
}

func (m tuiModel) renderSteps(snap session.Snapshot) string {
	if len(snap.Steps) == 0 {
		return m.theme.muted.Render("No panels yet.")
	}
	lines := make([]string, 0, len(snap.Steps))
	for _, step := range snap.Steps {
		author := step.AuthorID
		if author == m.userID {
			author = "you"
		}
		lines = append(lines, fmt.Sprintf("%d. %s  %s", step.StepNumber,
			m.theme.header.Render(author), draft.StripContinuityPrefix(step.PromptText)))
	}
	return strings.Join(lines, "\n")
}

func (m tuiModel) renderCandidates() string {
	lines := make([]string, 0, len(m.change.Candidates))
	for i, c := range m.change.Candidates {
		marker := "  "
		label := c.DisplayPrompt()
		if i == m.change.Selected {
			marker = m.theme.selected.Render("▸ ")
			label = m.theme.selected.Render(label)
		}
		var state string
		switch {
		case c.Ready():
			state = m.theme.ready.Render("ready")
		case c.Pending():
			state = m.spinner.View()
		default:
			state = m.theme.failed.Render("failed")
		}
		lines = append(lines, fmt.Sprintf("%s%s  %s", marker, state, label))
		if i == m.change.Selected && c.Ready() {
			lines = append(lines, m.theme.muted.Render("    "+c.Draft.OutputMediaReference))
		}
	}
	return strings.Join(lines, "\n")
}

func (m tuiModel) renderStatus() string {
	parts := []string{string(m.change.State)}
	if m.change.State.Busy() {
		parts[0] = m.spinner.View() + " " + parts[0]
	}
	if m.change.Snapshot.IsComplete() {
		parts = append(parts, "relay complete")
	} else if wait := m.view.CooldownRemaining(); wait > 0 {
		parts = append(parts, fmt.Sprintf("cooldown %s", wait.Round(time.Minute)))
	}
	if m.updated {
		parts = append(parts, "new panel available, ctrl+r to reload")
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	return m.theme.status.Render(strings.Join(parts, " · "))
}
