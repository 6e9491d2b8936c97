package tui

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/passplay/internal/model"
)

const eventBuffer = 64

var errEventQueueFull = errors.New("player event queue is full")

type passShownMsg struct {
	problem model.Problem
	pass    model.Pass
	index   int
	total   int
}

type metricsMsg struct {
	metrics model.Metrics
	series  model.Series
}

type changeMsg struct {
	text string
}

type completeMsg struct{}

type abortedMsg struct {
	err error
}

type frameMsg struct {
	gen int
	at  time.Time
}

// presenter forwards scheduler events into the Bubble Tea loop without blocking.
type presenter struct {
	events chan<- tea.Msg
}

func (p presenter) send(msg tea.Msg) error {
	select {
	case p.events <- msg:
		return nil
	default:
		return errEventQueueFull
	}
}

func (p presenter) OnPassShown(problem model.Problem, pass model.Pass, index, total int) error {
	return p.send(passShownMsg{problem: problem, pass: pass, index: index, total: total})
}

func (p presenter) OnMetricsUpdated(m model.Metrics, series model.Series) error {
	return p.send(metricsMsg{metrics: m, series: series})
}

func (p presenter) OnChangeDescribed(text string) error {
	return p.send(changeMsg{text: text})
}

func (p presenter) OnComplete() error {
	return p.send(completeMsg{})
}

func (p presenter) OnAborted(err error) {
	if sendErr := p.send(abortedMsg{err: err}); sendErr != nil {
		logErrf("playback aborted: %v\n", err)
	}
}

func listen(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}
