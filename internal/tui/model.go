// Package tui provides the Bubble Tea playback interface.
package tui

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/passplay/internal/catalog"
	"github.com/verte-zerg/passplay/internal/engine"
	"github.com/verte-zerg/passplay/internal/metrics"
	"github.com/verte-zerg/passplay/internal/model"
	"github.com/verte-zerg/passplay/internal/playback"
)

const (
	frameInterval = 30 * time.Millisecond
	barWidth      = 20
)

var speedSteps = []float64{0.25, 0.5, 1, 1.5, 2, 3, 4}

var (
	revealedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5A5A5A"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	titleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	labelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	changeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	modalStyle       = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#C89A3A")).
				Padding(1, 2)
)

// Model implements the Bubble Tea playback UI.
type Model struct {
	cat    *catalog.Catalog
	sched  *playback.Scheduler
	events chan tea.Msg
	cfg    model.Config

	width  int
	height int

	problem model.Problem
	pass    model.Pass
	index   int
	total   int
	hasPass bool
	metrics model.Metrics
	series  model.Series
	change  string
	aborted bool
	errMsg  string

	output      []rune
	revealed    int
	revealGen   int
	revealStart time.Time
	revealDur   time.Duration
	now         func() time.Time

	body viewport.Model

	settingsMode  bool
	inputs        []textinput.Model
	inputIndex    int
	settingsError string
}

// NewModel constructs a player for cfg.Problem and shows its first pass.
func NewModel(cat *catalog.Catalog, cfg model.Config, opts ...playback.Option) (*Model, error) {
	eng := engine.New(cat)
	if err := eng.InitProblem(cfg.Problem, cfg.Passes); err != nil {
		return nil, err
	}
	eng.SetSpeed(cfg.Speed)

	events := make(chan tea.Msg, eventBuffer)
	pause := time.Duration(cfg.PauseMs) * time.Millisecond
	allOpts := append([]playback.Option{playback.WithPause(pause)}, opts...)
	m := &Model{
		cat:    cat,
		events: events,
		cfg:    cfg,
		now:    time.Now,
		body:   viewport.New(0, 0),
	}
	m.sched = playback.New(eng, presenter{events: events}, allOpts...)
	m.initInputs()
	if err := m.sched.Reset(); err != nil {
		return nil, err
	}
	return m, nil
}

// Close stops any pending playback.
func (m *Model) Close() {
	m.sched.Cancel()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return listen(m.events)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case passShownMsg:
		m.showPass(msg)
		return m, tea.Batch(listen(m.events), m.frameCmd())
	case metricsMsg:
		m.metrics = msg.metrics
		m.series = msg.series
		m.refreshBody()
		return m, listen(m.events)
	case changeMsg:
		m.change = msg.text
		m.refreshBody()
		return m, listen(m.events)
	case completeMsg:
		m.refreshBody()
		return m, listen(m.events)
	case abortedMsg:
		m.aborted = true
		m.errMsg = msg.err.Error()
		return m, listen(m.events)
	case frameMsg:
		if msg.gen != m.revealGen {
			return m, nil
		}
		m.advanceReveal(msg.at)
		m.refreshBody()
		if m.revealed < len(m.output) {
			return m, m.frameCmd()
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Close()
			return m, tea.Quit
		}
		if m.settingsMode {
			return m.updateSettings(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.settingsMode {
		return m.renderSettings()
	}
	header := m.renderHeader()
	footer := renderFooter(m.sched.State(), m.aborted) + "\n"
	if m.errMsg != "" {
		footer += errorStyle.Render(truncateLine(m.errMsg, m.width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, m.body.View(), footer)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.Close()
		return m, tea.Quit
	case " ", "s":
		if m.sched.Running() {
			return m, nil
		}
		m.aborted = false
		m.errMsg = ""
		var err error
		if m.sched.State().Complete {
			err = m.sched.Restart()
		} else {
			err = m.sched.Start()
		}
		m.setError(err)
		return m, nil
	case "x":
		m.sched.Cancel()
		return m, nil
	case "r":
		m.aborted = false
		m.errMsg = ""
		m.setError(m.sched.Restart())
		return m, nil
	case "+", "=":
		m.setSpeed(nextSpeed(m.sched.State().Speed, 1))
		return m, nil
	case "-", "_":
		m.setSpeed(nextSpeed(m.sched.State().Speed, -1))
		return m, nil
	case "n":
		_, err := m.sched.Step()
		m.setError(err)
		return m, nil
	case "tab":
		key := m.cat.NextKey(m.problem.Key)
		if err := m.sched.Select(key, m.cfg.Passes); err != nil {
			m.setError(err)
			return m, nil
		}
		m.cfg.Problem = key
		m.errMsg = ""
		return m, nil
	case "/":
		return m.startSettings()
	case "g", "home":
		m.body.GotoTop()
		return m, nil
	case "G", "end":
		m.body.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.body, cmd = m.body.Update(msg)
	return m, cmd
}

func (m *Model) setSpeed(speed float64) {
	m.sched.SetSpeed(speed)
	m.cfg.Speed = speed
}

func (m *Model) setError(err error) {
	if err != nil {
		m.errMsg = err.Error()
	}
}

func (m *Model) showPass(msg passShownMsg) {
	if msg.problem.Key != m.problem.Key || msg.index == 0 {
		m.change = ""
	}
	m.problem = msg.problem
	m.pass = msg.pass
	m.index = msg.index
	m.total = msg.total
	m.hasPass = true
	m.output = []rune(msg.pass.Output)
	m.revealed = 0
	m.revealGen++
	m.revealStart = m.now()
	m.revealDur = m.sched.AnimationDuration()
	m.body.GotoTop()
	m.refreshBody()
}

func (m *Model) frameCmd() tea.Cmd {
	gen := m.revealGen
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg{gen: gen, at: t}
	})
}

func (m *Model) advanceReveal(now time.Time) {
	elapsed := now.Sub(m.revealStart)
	if m.revealDur <= 0 || elapsed >= m.revealDur {
		m.revealed = len(m.output)
		return
	}
	if elapsed < 0 {
		elapsed = 0
	}
	m.revealed = int(float64(len(m.output)) * float64(elapsed) / float64(m.revealDur))
}

func (m *Model) contentWidth() int {
	width := int(float64(m.width) * 0.80)
	if width < 20 {
		width = maxInt(1, m.width)
	}
	return width
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	headerHeight := lipgloss.Height(m.renderHeader())
	footerHeight := 2
	m.body.Width = m.width
	m.body.Height = maxInt(1, m.height-headerHeight-footerHeight)
	for i := range m.inputs {
		promptWidth := lipgloss.Width(m.inputs[i].Prompt)
		m.inputs[i].Width = maxInt(10, modalInnerWidth(m.width)-promptWidth)
	}
	m.refreshBody()
}

func (m *Model) refreshBody() {
	if m.width <= 0 {
		return
	}
	m.body.SetContent(m.renderContent(m.contentWidth()))
}

func (m *Model) renderHeader() string {
	if !m.hasPass {
		return titleStyle.Render("No problem selected") + "\n"
	}
	title := titleStyle.Render(m.problem.Title)
	progress := 0
	if m.total > 0 {
		progress = (m.index + 1) * 100 / m.total
	}
	line := fmt.Sprintf("%s  %s %d%%", metrics.PassLabel(m.index, m.total), metrics.ScoreBar(progress, barWidth), progress)
	return title + "\n" + labelStyle.Render(line)
}

func (m *Model) renderContent(width int) string {
	if !m.hasPass {
		return pendingStyle.Render("No pass to show.")
	}
	sections := []string{
		labelStyle.Render("Output"),
		wrapStyledRunes(buildStyledRunes(m.output, m.revealed), width),
	}
	if m.pass.Critique != "" {
		sections = append(sections, "", labelStyle.Render("Critique"),
			lipgloss.NewStyle().Width(width).Render(m.pass.Critique))
	}
	sections = append(sections, "", renderMetrics(m.metrics))
	if trend := renderTrend(m.series); trend != "" {
		sections = append(sections, "", labelStyle.Render("Trend"), trend)
	}
	if m.change != "" {
		sections = append(sections, "", changeStyle.Render(m.change))
	}
	return strings.Join(sections, "\n")
}

func renderMetrics(v model.Metrics) string {
	rows := []string{
		fmt.Sprintf("%-12s %s %3d%%", "Clarity", metrics.ScoreBar(v.Clarity, barWidth), v.Clarity),
		fmt.Sprintf("%-12s %s %3d%%", "Correctness", metrics.ScoreBar(v.Correctness, barWidth), v.Correctness),
		fmt.Sprintf("%-12s %s %3d%%", "Structure", metrics.ScoreBar(v.Structure, barWidth), v.Structure),
		fmt.Sprintf("%-12s %d", "Errors", v.Errors),
		fmt.Sprintf("%-12s %d%%", "Average", v.Average),
	}
	return strings.Join(rows, "\n")
}

func renderTrend(s model.Series) string {
	if s.Len() == 0 {
		return ""
	}
	lines := make([]string, 0, 3)
	for _, series := range metrics.ChartSeries(s) {
		last := 0.0
		if len(series.Values) > 0 {
			last = series.Values[len(series.Values)-1]
		}
		lines = append(lines, fmt.Sprintf("%-12s %s  %.0f", series.Name, metrics.Sparkline(series.Values), last))
	}
	return strings.Join(lines, "\n")
}

func renderFooter(st playback.State, aborted bool) string {
	status := "Paused"
	switch {
	case aborted:
		status = "Aborted"
	case st.Running:
		status = "Playing"
	case st.Complete:
		status = "Complete"
	case st.Index == 0:
		status = "Ready"
	}
	segments := []string{
		status,
		fmt.Sprintf("Speed %sx", strconv.FormatFloat(st.Speed, 'f', -1, 64)),
		fmt.Sprintf("Pass %d/%d", st.Index+1, st.Total),
		"space start  x cancel  r restart  +/- speed  n step  tab next  / settings  q quit",
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func nextSpeed(current float64, dir int) float64 {
	if dir > 0 {
		for _, s := range speedSteps {
			if s > current+1e-9 {
				return s
			}
		}
		return current
	}
	for i := len(speedSteps) - 1; i >= 0; i-- {
		if speedSteps[i] < current-1e-9 {
			return speedSteps[i]
		}
	}
	return current
}

func (m *Model) initInputs() {
	m.inputs = []textinput.Model{
		newSettingsInput("Problem: "),
		newSettingsInput("Passes: "),
		newSettingsInput("Speed: "),
	}
}

func newSettingsInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) startSettings() (tea.Model, tea.Cmd) {
	m.settingsMode = true
	m.settingsError = ""
	m.inputs[0].SetValue(m.problem.Key)
	m.inputs[1].SetValue(strconv.Itoa(m.cfg.Passes))
	m.inputs[2].SetValue(strconv.FormatFloat(m.sched.State().Speed, 'f', -1, 64))
	return m, m.setInputIndex(0)
}

func (m *Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.settingsMode = false
		m.settingsError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applySettings(); err != nil {
			m.settingsError = err.Error()
			return m, nil
		}
		m.settingsMode = false
		m.settingsError = ""
		m.errMsg = ""
		m.aborted = false
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setInputIndex(m.inputIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setInputIndex(m.inputIndex - 1)
	}
	var cmd tea.Cmd
	m.inputs[m.inputIndex], cmd = m.inputs[m.inputIndex].Update(msg)
	return m, cmd
}

func (m *Model) setInputIndex(idx int) tea.Cmd {
	count := len(m.inputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.inputIndex = idx
	var cmd tea.Cmd
	for i := range m.inputs {
		if i == m.inputIndex {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applySettings() error {
	key := strings.TrimSpace(m.inputs[0].Value())
	if _, ok := m.cat.Problem(key); !ok {
		return fmt.Errorf("unknown problem %q (available: %s)", key, strings.Join(m.cat.Keys(), ", "))
	}
	passes, err := strconv.Atoi(strings.TrimSpace(m.inputs[1].Value()))
	if err != nil || passes < 1 {
		return fmt.Errorf("invalid passes (use integer >= 1)")
	}
	speed, err := strconv.ParseFloat(strings.TrimSpace(m.inputs[2].Value()), 64)
	if err != nil || speed <= 0 {
		return fmt.Errorf("invalid speed (use number > 0)")
	}
	m.sched.SetSpeed(speed)
	if err := m.sched.Select(key, passes); err != nil {
		return err
	}
	m.cfg.Problem = key
	m.cfg.Passes = passes
	m.cfg.Speed = speed
	return nil
}

func (m *Model) renderSettings() string {
	lines := []string{titleStyle.Render("Settings")}
	for _, input := range m.inputs {
		lines = append(lines, input.View())
	}
	lines = append(lines, labelStyle.Render("Problems: "+strings.Join(m.cat.Keys(), ", ")))
	lines = append(lines, labelStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel"))
	if m.settingsError != "" {
		lines = append(lines, errorStyle.Render(m.settingsError))
	}
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func modalWidth(width int) int {
	return maxInt(40, minInt(width-4, 80))
}

func modalInnerWidth(width int) int {
	w := modalWidth(width)
	w -= 6 // 2 border + 4 padding
	if w < 10 {
		return 10
	}
	return w
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

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
