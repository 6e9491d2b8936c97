package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/passplay/internal/catalog"
	"github.com/verte-zerg/passplay/internal/model"
	"github.com/verte-zerg/passplay/internal/playback"
)

type stubTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *stubTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type stubClock struct {
	timers []*stubTimer
}

func (c *stubClock) AfterFunc(_ time.Duration, f func()) playback.Timer {
	t := &stubTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *stubClock) fire(t *testing.T) {
	t.Helper()
	for _, timer := range c.timers {
		if !timer.stopped && !timer.fired {
			timer.fired = true
			timer.f()
			return
		}
	}
	t.Fatalf("no pending timer")
}

func newTestModel(t *testing.T, problem string) (*Model, *stubClock) {
	t.Helper()
	clock := &stubClock{}
	m, err := NewModel(catalog.Default(), model.Config{Problem: problem, Passes: 4, Speed: 1}, playback.WithClock(clock))
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	drain(m)
	return m, clock
}

// drain feeds queued scheduler events into Update.
func drain(m *Model) {
	for {
		select {
		case msg := <-m.events:
			m.Update(msg)
		default:
			return
		}
	}
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModelShowsFirstPass(t *testing.T) {
	m, _ := newTestModel(t, "essay")
	if !m.hasPass || m.index != 0 || m.total != 4 || m.problem.Key != "essay" {
		t.Fatalf("unexpected state: index=%d total=%d key=%s", m.index, m.total, m.problem.Key)
	}
	if m.metrics.Average == 0 || m.series.Len() != 1 {
		t.Fatalf("expected metrics for first pass, got %+v", m.metrics)
	}
	if m.change != "" {
		t.Fatalf("expected no change text on first pass")
	}
}

func TestNewModelUnknownProblem(t *testing.T) {
	if _, err := NewModel(catalog.Default(), model.Config{Problem: "missing", Passes: 4, Speed: 1}); err == nil {
		t.Fatalf("expected unknown problem error")
	}
}

func TestPlaybackAdvancesThroughKeys(t *testing.T) {
	m, clock := newTestModel(t, "code-review")
	m.Update(key(" "))
	drain(m)
	if !m.sched.Running() {
		t.Fatalf("expected playback running")
	}
	clock.fire(t)
	drain(m)
	if m.index != 1 || !strings.HasPrefix(m.change, "Improved") {
		t.Fatalf("expected second pass with change, got index=%d change=%q", m.index, m.change)
	}
	m.Update(key("x"))
	if m.sched.Running() {
		t.Fatalf("expected cancel to stop playback")
	}
	m.Update(key("n"))
	drain(m)
	if m.index != 2 {
		t.Fatalf("expected manual step to pass 3, got %d", m.index)
	}
	m.Update(key("r"))
	drain(m)
	if m.index != 0 || !m.sched.Running() || m.change != "" {
		t.Fatalf("expected restart from first pass")
	}
}

func TestSpeedKeys(t *testing.T) {
	m, _ := newTestModel(t, "math")
	m.Update(key("+"))
	if got := m.sched.State().Speed; got != 1.5 {
		t.Fatalf("expected 1.5x, got %v", got)
	}
	m.Update(key("-"))
	m.Update(key("-"))
	if got := m.sched.State().Speed; got != 0.5 {
		t.Fatalf("expected 0.5x, got %v", got)
	}
}

func TestTabSelectsNextProblem(t *testing.T) {
	m, _ := newTestModel(t, "writing")
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	drain(m)
	if m.problem.Key != "code-review" || m.index != 0 {
		t.Fatalf("expected wrap to first problem, got %s", m.problem.Key)
	}
}

func TestSettingsRejectUnknownProblem(t *testing.T) {
	m, _ := newTestModel(t, "essay")
	m.Update(key("/"))
	if !m.settingsMode {
		t.Fatalf("expected settings mode")
	}
	m.inputs[0].SetValue("nope")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.settingsMode || !strings.Contains(m.settingsError, "unknown problem") {
		t.Fatalf("expected settings error, got %q", m.settingsError)
	}
	m.inputs[0].SetValue("logic")
	m.inputs[1].SetValue("2")
	m.inputs[2].SetValue("2")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(m)
	if m.settingsMode || m.problem.Key != "logic" || m.total != 2 {
		t.Fatalf("expected settings applied, got key=%s total=%d", m.problem.Key, m.total)
	}
	if got := m.sched.State().Speed; got != 2 {
		t.Fatalf("expected speed 2, got %v", got)
	}
}

func TestAdvanceRevealFollowsAnimation(t *testing.T) {
	m, _ := newTestModel(t, "essay")
	start := m.revealStart
	m.advanceReveal(start.Add(m.revealDur / 2))
	if m.revealed <= 0 || m.revealed >= len(m.output) {
		t.Fatalf("expected partial reveal, got %d of %d", m.revealed, len(m.output))
	}
	m.advanceReveal(start.Add(m.revealDur))
	if m.revealed != len(m.output) {
		t.Fatalf("expected full reveal")
	}
}

func TestRenderFooterFormats(t *testing.T) {
	out := renderFooter(playback.State{Index: 1, Total: 4, Speed: 1.5, Running: true}, false)
	for _, want := range []string{"Playing", "Speed 1.5x", "Pass 2/4"} {
		if !strings.Contains(out, want) {
			t.Fatalf("footer missing %q: %s", want, out)
		}
	}
	if out := renderFooter(playback.State{Index: 3, Total: 4, Speed: 1, Complete: true}, false); !strings.Contains(out, "Complete") {
		t.Fatalf("expected complete status: %s", out)
	}
	if out := renderFooter(playback.State{Index: 2, Total: 4, Speed: 1, Running: true}, true); !strings.Contains(out, "Aborted") {
		t.Fatalf("expected aborted status: %s", out)
	}
}

func TestNextSpeedSteps(t *testing.T) {
	if got := nextSpeed(1, 1); got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
	if got := nextSpeed(4, 1); got != 4 {
		t.Fatalf("expected max to hold, got %v", got)
	}
	if got := nextSpeed(0.25, -1); got != 0.25 {
		t.Fatalf("expected min to hold, got %v", got)
	}
	if got := nextSpeed(1.2, -1); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}
