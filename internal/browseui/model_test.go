package browseui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/passplay/internal/catalog"
	"github.com/verte-zerg/passplay/internal/engine"
)

func newTestModel(t *testing.T, key string, passes int) *Model {
	t.Helper()
	m, err := NewModel(catalog.Default(), key, passes)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestNewModelUnknownProblem(t *testing.T) {
	_, err := NewModel(catalog.Default(), "missing", 4)
	if !errors.Is(err, engine.ErrUnknownProblem) {
		t.Fatalf("expected ErrUnknownProblem, got %v", err)
	}
}

func TestTimelineRowsFollowPassCount(t *testing.T) {
	m := newTestModel(t, "essay", 3)
	if got := len(m.timeline.Rows()); got != 3 {
		t.Fatalf("expected 3 rows, got %d", got)
	}
	rows := m.timeline.Rows()
	if rows[0][0] != "Pass 1 (Initial)" || rows[2][0] != "Pass 3 (Final)" {
		t.Fatalf("unexpected labels: %q %q", rows[0][0], rows[2][0])
	}
	if rows[0][6] != "-" || !strings.HasPrefix(rows[1][6], "Improved") {
		t.Fatalf("unexpected change column: %q %q", rows[0][6], rows[1][6])
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("=")})
	if got := len(m.timeline.Rows()); got != 4 {
		t.Fatalf("expected 4 rows after increase, got %d", got)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("=")})
	if m.passes != 4 {
		t.Fatalf("expected passes capped at 4, got %d", m.passes)
	}
}

func TestPassesClampToAvailable(t *testing.T) {
	m := newTestModel(t, "math", 0)
	if m.passes != 1 {
		t.Fatalf("expected at least one pass, got %d", m.passes)
	}
	m = newTestModel(t, "math", 99)
	if m.passes != 4 {
		t.Fatalf("expected clamp to 4, got %d", m.passes)
	}
}

func TestEnterOpensDetailForSelectedPass(t *testing.T) {
	m := newTestModel(t, "logic", 4)
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.selectedPass() != 1 {
		t.Fatalf("expected second row selected, got %d", m.selectedPass())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.activeTab != tabDetail {
		t.Fatalf("expected detail tab")
	}
	view := m.View()
	if !strings.Contains(view, "Pass 2") {
		t.Fatalf("expected detail for pass 2")
	}
}

func TestProblemSwitchWraps(t *testing.T) {
	m := newTestModel(t, "code-review", 4)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("[")})
	if m.problem.Key != "writing" {
		t.Fatalf("expected wrap to last problem, got %s", m.problem.Key)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("]")})
	if m.problem.Key != "code-review" {
		t.Fatalf("expected wrap to first problem, got %s", m.problem.Key)
	}
}

func TestJumpRejectsBadInput(t *testing.T) {
	m := newTestModel(t, "essay", 4)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if !m.jumpMode {
		t.Fatalf("expected jump mode")
	}
	m.jumpInputs[1].SetValue("zero")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.jumpError == "" {
		t.Fatalf("expected invalid passes error")
	}
	m.jumpInputs[0].SetValue("writing")
	m.jumpInputs[1].SetValue("2")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.jumpMode || m.problem.Key != "writing" || m.passes != 2 {
		t.Fatalf("expected jump applied, got %s/%d", m.problem.Key, m.passes)
	}
}

func TestRenderChartIncludesSummary(t *testing.T) {
	p, _ := catalog.Default().Problem("code-review")
	out := renderChart(p, 4, 100)
	for _, want := range []string{"Clarity", "Errors: ", "Gains: ", "Weakest now: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("chart missing %q", want)
		}
	}
	if single := renderChart(p, 1, 100); strings.Contains(single, "Gains: ") {
		t.Fatalf("expected no gains for a single pass")
	}
}

func TestRenderDetailExplainsMetrics(t *testing.T) {
	p, _ := catalog.Default().Problem("essay")
	out := renderDetail(p, 0, 4, 80)
	for _, want := range []string{"Pass 1 (Initial)", "Self-critique:", "Clarity (", "Key insight:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("detail missing %q", want)
		}
	}
}
