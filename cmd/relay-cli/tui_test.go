package main

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/pkg/relay/draft"
	"github.com/janhq/jan-relay/pkg/relay/orchestrator"
	"github.com/janhq/jan-relay/pkg/relay/relayerr"
	"github.com/janhq/jan-relay/pkg/relay/session"
)

type fakeView struct {
	changes   chan orchestrator.Change
	prompts   []string
	titles    []string
	canGo     bool
	cooldown  time.Duration
	published *orchestrator.Notice
}

func newFakeView() *fakeView {
	return &fakeView{changes: make(chan orchestrator.Change, 4), canGo: true}
}

func (f *fakeView) Start(context.Context) *orchestrator.Notice   { return nil }
func (f *fakeView) Changes() <-chan orchestrator.Change          { return f.changes }
func (f *fakeView) Discard(context.Context) *orchestrator.Notice { return nil }
func (f *fakeView) Refresh(context.Context) *orchestrator.Notice { return nil }
func (f *fakeView) Next()                                        {}
func (f *fakeView) Prev()                                        {}
func (f *fakeView) CanContinue() bool                            { return f.canGo }
func (f *fakeView) CooldownRemaining() time.Duration             { return f.cooldown }
func (f *fakeView) Leave()                                       {}
func (f *fakeView) Generate(_ context.Context, prompt string) *orchestrator.Notice {
	f.prompts = append(f.prompts, prompt)
	return nil
}
func (f *fakeView) Publish(_ context.Context, title string) *orchestrator.Notice {
	f.titles = append(f.titles, title)
	return f.published
}

func previewing() orchestrator.Change {
	return orchestrator.Change{
		State: orchestrator.StatePreviewing,
		Snapshot: session.Snapshot{
			Session: api.Session{ID: "relay_1", Title: "Fox", MaxSteps: 4, StepCount: 1, Status: api.SessionOpen},
			Steps:   []api.Step{{StepNumber: 1, AuthorID: "alice", PromptText: "a fox"}},
		},
		Candidates: []draft.Candidate{{Draft: api.Draft{
			ID: "draft_1", Status: api.DraftReady, UserPrompt: "a crow", OutputMediaReference: "/v1/media/m1",
		}}},
		Selected: 0,
	}
}

func typeText(m tea.Model, text string) tea.Model {
	for _, r := range text {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func run(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

func TestTUI_RendersChange(t *testing.T) {
	view := newFakeView()
	var m tea.Model = newTUIModel(context.Background(), view, "bob")

	m, _ = m.Update(changeMsg(previewing()))
	out := m.View()
	for _, want := range []string{"Fox", "1/4 panels", "alice", "a fox", "a crow", "/v1/media/m1", "previewing"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view is missing %q:\n%s", want, out)
		}
	}
}

func TestTUI_EnterGenerates(t *testing.T) {
	view := newFakeView()
	var m tea.Model = newTUIModel(context.Background(), view, "bob")
	m, _ = m.Update(changeMsg(orchestrator.Change{State: orchestrator.StateIdle, Selected: -1}))

	m = typeText(m, "a crow lands")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	msg := run(cmd)
	if len(view.prompts) != 1 || view.prompts[0] != "a crow lands" {
		t.Fatalf("unexpected prompts %v", view.prompts)
	}
	m, _ = m.Update(msg)
	if !strings.Contains(m.View(), "generate done") {
		t.Fatalf("expected status after generation:\n%s", m.View())
	}
}

func TestTUI_EnterBlockedWhenRelayCannotContinue(t *testing.T) {
	view := newFakeView()
	view.canGo = false
	var m tea.Model = newTUIModel(context.Background(), view, "bob")
	m, _ = m.Update(changeMsg(orchestrator.Change{State: orchestrator.StateIdle, Selected: -1}))

	m = typeText(m, "more")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || len(view.prompts) != 0 {
		t.Fatalf("generation must not start")
	}
}

func TestTUI_PublishShowsConflictNotice(t *testing.T) {
	view := newFakeView()
	view.published = orchestrator.NoticeFor(
		&relayerr.Error{Kind: relayerr.KindTurnConflict, Reason: relayerr.ReasonStepConflict, Op: "publish"}, "publish", "bob")
	var m tea.Model = newTUIModel(context.Background(), view, "bob")

	// ctrl+p is ignored until a candidate is ready.
	m, _ = m.Update(changeMsg(orchestrator.Change{State: orchestrator.StateIdle, Selected: -1}))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	if m.(tuiModel).mode != modePrompt {
		t.Fatalf("title mode entered without a ready candidate")
	}

	m, _ = m.Update(changeMsg(previewing()))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	if m.(tuiModel).mode != modeTitle {
		t.Fatalf("expected title mode")
	}
	m = typeText(m, "Crow")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(run(cmd))

	if len(view.titles) != 1 || view.titles[0] != "Crow" {
		t.Fatalf("unexpected titles %v", view.titles)
	}
	if !strings.Contains(m.View(), "Someone else got there first") {
		t.Fatalf("conflict notice not shown:\n%s", m.View())
	}
}

func TestTUI_ShowsCooldown(t *testing.T) {
	view := newFakeView()
	view.cooldown = 90 * time.Minute
	var m tea.Model = newTUIModel(context.Background(), view, "alice")
	m, _ = m.Update(changeMsg(previewing()))

	if !strings.Contains(m.View(), "cooldown 1h30m0s") {
		t.Fatalf("cooldown not shown:\n%s", m.View())
	}
}
