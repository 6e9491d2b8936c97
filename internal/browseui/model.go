// Package browseui provides the Bubble Tea timeline browser.
package browseui

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/passplay/internal/catalog"
	"github.com/verte-zerg/passplay/internal/engine"
	"github.com/verte-zerg/passplay/internal/metrics"
	"github.com/verte-zerg/passplay/internal/model"
)

const (
	tabTimeline = iota
	tabChart
	tabDetail
)

const (
	plotHeight = 10
)

var metricNotes = []struct {
	name string
	note string
}{
	{"Clarity", "How easily can the answer be read and followed?"},
	{"Correctness", "How accurate and free of mistakes is the answer?"},
	{"Structure", "How well organized is the answer?"},
}

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea timeline browser.
type Model struct {
	cat     *catalog.Catalog
	problem model.Problem
	passes  int
	errMsg  string

	tabs      []string
	activeTab int
	viewports []viewport.Model
	timeline  table.Model

	width  int
	height int

	jumpMode   bool
	jumpInputs []textinput.Model
	jumpIndex  int
	jumpError  string
}

// NewModel constructs a browser for one problem showing its first passes.
func NewModel(cat *catalog.Catalog, key string, passes int) (*Model, error) {
	problem, ok := cat.Problem(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownProblem, key)
	}
	m := &Model{
		cat:     cat,
		problem: problem,
		passes:  clampPasses(passes, len(problem.Passes)),
		tabs:    []string{"Timeline", "Chart", "Detail"},
	}
	m.initInputs()
	m.initViewports()
	m.timeline = buildTimelineTable(m.problem, m.passes, 0, 1)
	m.renderTabContents()
	return m, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.jumpMode {
			return m.updateJump(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "]", "tab":
			m.selectProblem(m.cat.NextKey(m.problem.Key))
			return m, nil
		case "[", "shift+tab":
			m.selectProblem(prevKey(m.cat, m.problem.Key))
			return m, nil
		case "=", "+":
			m.setPasses(m.passes + 1)
			return m, nil
		case "-":
			m.setPasses(m.passes - 1)
			return m, nil
		case "/":
			return m.startJump()
		case "enter":
			if m.activeTab == tabTimeline {
				m.activeTab = tabDetail
				m.timeline.Blur()
				m.renderTabContents()
				return m, tea.ClearScreen
			}
			return m, nil
		case "g", "home":
			if m.activeTab == tabTimeline {
				m.timeline.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			m.renderTabContents()
			return m, nil
		case "G", "end":
			if m.activeTab == tabTimeline {
				m.timeline.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			m.renderTabContents()
			return m, nil
		default:
			if m.activeTab == tabTimeline {
				var cmd tea.Cmd
				m.timeline, cmd = m.timeline.Update(msg)
				m.renderTabContents()
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.jumpInputs = []textinput.Model{
		newJumpInput("Problem: "),
		newJumpInput("Passes: "),
	}
}

func newJumpInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.jumpMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.timeline.SetWidth(m.width)
	m.timeline.SetHeight(maxInt(1, vpHeight-1))
	for i := range m.jumpInputs {
		promptWidth := lipgloss.Width(m.jumpInputs[i].Prompt)
		m.jumpInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabTimeline {
		m.timeline.Focus()
	} else {
		m.timeline.Blur()
	}
}

func (m *Model) selectProblem(key string) {
	problem, ok := m.cat.Problem(key)
	if !ok {
		m.errMsg = fmt.Sprintf("unknown problem %q", key)
		return
	}
	m.errMsg = ""
	m.problem = problem
	m.passes = clampPasses(m.passes, len(problem.Passes))
	m.rebuildTimeline()
}

func (m *Model) setPasses(n int) {
	n = clampPasses(n, len(m.problem.Passes))
	if n == m.passes {
		return
	}
	m.passes = n
	m.rebuildTimeline()
}

func (m *Model) rebuildTimeline() {
	cols, rows := timelineData(m.problem, m.passes)
	m.timeline.SetColumns(cols)
	m.timeline.SetRows(rows)
	if m.timeline.Cursor() >= len(rows) {
		m.timeline.SetCursor(len(rows) - 1)
	}
	m.renderTabContents()
}

// selectedPass is the timeline row shown in the Detail tab.
func (m *Model) selectedPass() int {
	idx := m.timeline.Cursor()
	if idx < 0 {
		return 0
	}
	if idx >= m.passes {
		return m.passes - 1
	}
	return idx
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := fmt.Sprintf("Problem: %s (%s)  passes=%d/%d", m.problem.Title, m.problem.Key, m.passes, len(m.problem.Passes))
	return tabs + "\n" + padLines(headerStyle.Render(truncateLine(summary, m.width)), m.width)
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Problem: [/]  Passes: -/=  Jump: /  Quit: q"
	if m.activeTab == tabTimeline {
		help = "Nav: left/right  Select: up/down  Detail: enter  Problem: [/]  Passes: -/=  Jump: /  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	if m.jumpMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderJumpForm() string {
	lines := []string{"Jump to problem (enter to apply, esc to cancel)"}
	for _, input := range m.jumpInputs {
		lines = append(lines, input.View())
	}
	lines = append(lines, headerStyle.Render("Problems: "+strings.Join(m.cat.Keys(), ", ")))
	if m.jumpError != "" {
		lines = append(lines, errorStyle.Render(m.jumpError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.jumpMode {
		return fitLines(m.renderJumpForm(), m.width, height)
	}
	if m.activeTab == tabTimeline {
		return fitLines(tableMutedStyle.Render(m.timeline.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabChart].SetContent(renderChart(m.problem, m.passes, width))
	m.viewports[tabDetail].SetContent(renderDetail(m.problem, m.selectedPass(), m.passes, width))
}

func buildTimelineTable(p model.Problem, passes, width, height int) table.Model {
	cols, rows := timelineData(p, passes)
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithHeight(maxInt(1, height-1)),
		table.WithFocused(true),
	)
	t.SetWidth(width)
	t.SetStyles(timelineStyles())
	return t
}

func timelineData(p model.Problem, passes int) ([]table.Column, []table.Row) {
	columns := []table.Column{
		{Title: "Pass", Width: 18},
		{Title: "Clarity", Width: 8},
		{Title: "Correctness", Width: 11},
		{Title: "Structure", Width: 9},
		{Title: "Errors", Width: 6},
		{Title: "Avg", Width: 4},
		{Title: "Change", Width: 48},
	}
	rows := make([]table.Row, 0, passes)
	for i := 0; i < passes && i < len(p.Passes); i++ {
		pass := p.Passes[i]
		mv, err := metrics.FormatMetrics(&pass)
		if err != nil {
			continue
		}
		change := "-"
		if i > 0 {
			change = metrics.DescribeChange(p.Passes[i-1], pass)
		}
		rows = append(rows, table.Row{
			metrics.PassLabel(i, passes),
			fmt.Sprintf("%d%%", mv.Clarity),
			fmt.Sprintf("%d%%", mv.Correctness),
			fmt.Sprintf("%d%%", mv.Structure),
			strconv.Itoa(mv.Errors),
			strconv.Itoa(mv.Average),
			change,
		})
	}
	return columns, rows
}

func timelineStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func renderChart(p model.Problem, passes, width int) string {
	if passes == 0 {
		return "No passes."
	}
	history := metrics.MetricHistory(p, passes)
	var buf bytes.Buffer
	title := "Quality across refinement passes"
	if err := metrics.PlotSeriesWithColor(&buf, title, metrics.ChartSeries(history), metrics.PlotWidthFor(width), plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render chart: %v", err)
	}
	lines := []string{strings.TrimRight(buf.String(), "\n"), ""}

	errs := make([]string, len(history.Errors))
	for i, v := range history.Errors {
		errs[i] = strconv.Itoa(v)
	}
	lines = append(lines, labelStyle.Render("Errors: ")+strings.Join(errs, " -> "))

	first, last := p.Passes[0], p.Passes[passes-1]
	if passes > 1 {
		gains := metrics.RankGains(first, last)
		parts := make([]string, 0, len(gains))
		for _, g := range gains {
			parts = append(parts, fmt.Sprintf("%s %+d", g.Metric, g.Delta))
		}
		lines = append(lines, labelStyle.Render("Gains: ")+strings.Join(parts, ", "))
	}
	lines = append(lines, labelStyle.Render("Weakest now: ")+metrics.WeakestMetric(last))
	return strings.Join(lines, "\n")
}

func renderDetail(p model.Problem, index, passes, width int) string {
	if index < 0 || index >= len(p.Passes) {
		return "No pass selected."
	}
	pass := p.Passes[index]
	wrap := lipgloss.NewStyle().Width(maxInt(20, width-2))
	lines := []string{
		valueStyle.Render("Detailed analysis: " + metrics.PassLabel(index, passes)),
		"",
		labelStyle.Render("Full response:"),
		wrap.Render(pass.Output),
		"",
		labelStyle.Render("Self-critique:"),
		wrap.Render(pass.Critique),
		"",
		labelStyle.Render("Quality metrics:"),
	}
	scores := []int{pass.Scores.Clarity, pass.Scores.Correctness, pass.Scores.Structure}
	for i, n := range metricNotes {
		lines = append(lines, fmt.Sprintf("  %s (%d%%): %s", n.name, scores[i], n.note))
	}
	lines = append(lines, fmt.Sprintf("  Errors: %d", pass.Errors))
	lines = append(lines, "", labelStyle.Render("Key insight:"), wrap.Render(metrics.Insight(index)))
	return strings.Join(lines, "\n")
}

func (m *Model) startJump() (tea.Model, tea.Cmd) {
	m.jumpMode = true
	m.jumpError = ""
	m.jumpInputs[0].SetValue(m.problem.Key)
	m.jumpInputs[1].SetValue(strconv.Itoa(m.passes))
	return m, m.setJumpIndex(0)
}

func (m *Model) updateJump(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.jumpMode = false
		m.jumpError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyJump(); err != nil {
			m.jumpError = err.Error()
			return m, nil
		}
		m.jumpMode = false
		m.jumpError = ""
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setJumpIndex(m.jumpIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setJumpIndex(m.jumpIndex - 1)
	}
	var cmd tea.Cmd
	m.jumpInputs[m.jumpIndex], cmd = m.jumpInputs[m.jumpIndex].Update(msg)
	return m, cmd
}

func (m *Model) setJumpIndex(idx int) tea.Cmd {
	count := len(m.jumpInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.jumpIndex = idx
	var cmd tea.Cmd
	for i := range m.jumpInputs {
		if i == m.jumpIndex {
			cmd = m.jumpInputs[i].Focus()
		} else {
			m.jumpInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyJump() error {
	key := strings.TrimSpace(m.jumpInputs[0].Value())
	problem, ok := m.cat.Problem(key)
	if !ok {
		return fmt.Errorf("unknown problem %q", key)
	}
	passesInput := strings.TrimSpace(m.jumpInputs[1].Value())
	passes := len(problem.Passes)
	if passesInput != "" {
		parsed, err := strconv.Atoi(passesInput)
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid passes (use integer >= 1)")
		}
		passes = parsed
	}
	m.problem = problem
	m.passes = clampPasses(passes, len(problem.Passes))
	m.errMsg = ""
	m.rebuildTimeline()
	return nil
}

func clampPasses(n, available int) int {
	if n < 1 {
		n = 1
	}
	if n > available {
		n = available
	}
	return n
}

func prevKey(cat *catalog.Catalog, key string) string {
	keys := cat.Keys()
	for i, k := range keys {
		if k == key {
			return keys[(i-1+len(keys))%len(keys)]
		}
	}
	if len(keys) > 0 {
		return keys[0]
	}
	return ""
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
