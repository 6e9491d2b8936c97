package tui

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/passplay/internal/catalog"
	"github.com/verte-zerg/passplay/internal/engine"
	"github.com/verte-zerg/passplay/internal/playback"
)

func newQueuedScheduler(t *testing.T, events chan tea.Msg, problem string) (*playback.Scheduler, *stubClock) {
	t.Helper()
	eng := engine.New(catalog.Default())
	if err := eng.InitProblem(problem, 4); err != nil {
		t.Fatalf("init: %v", err)
	}
	clock := &stubClock{}
	sched := playback.New(eng, presenter{events: events},
		playback.WithClock(clock),
		playback.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return sched, clock
}

func TestPresenterReportsFullQueue(t *testing.T) {
	events := make(chan tea.Msg, 1)
	p := presenter{events: events}
	if err := p.OnChangeDescribed("first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.OnChangeDescribed("second"); !errors.Is(err, errEventQueueFull) {
		t.Fatalf("expected full queue error, got %v", err)
	}
	if msg := <-events; msg.(changeMsg).text != "first" {
		t.Fatalf("queued message replaced: %+v", msg)
	}
}

func TestFullQueueAbortsPlayback(t *testing.T) {
	events := make(chan tea.Msg, 1)
	sched, clock := newQueuedScheduler(t, events, "essay")

	err := sched.Start()
	if !errors.Is(err, engine.ErrPlaybackAborted) || !errors.Is(err, errEventQueueFull) {
		t.Fatalf("expected aborted playback caused by full queue, got %v", err)
	}
	if st := sched.State(); st.Running || st.Index != 0 {
		t.Fatalf("expected stopped playback at pass 0, got %+v", st)
	}
	if len(clock.timers) != 0 {
		t.Fatalf("aborted playback scheduled %d ticks", len(clock.timers))
	}
	if _, ok := (<-events).(passShownMsg); !ok {
		t.Fatalf("expected the pass event to stay queued")
	}
}

func TestEventBufferHoldsUndrainedPlayback(t *testing.T) {
	events := make(chan tea.Msg, eventBuffer)
	sched, clock := newQueuedScheduler(t, events, "essay")

	if err := sched.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for !sched.State().Complete {
		clock.fire(t)
	}
	if len(events) == 0 || len(events) == cap(events) {
		t.Fatalf("unexpected queue depth %d", len(events))
	}
	var last tea.Msg
	for len(events) > 0 {
		last = <-events
	}
	if _, ok := last.(completeMsg); !ok {
		t.Fatalf("expected complete as last event, got %T", last)
	}
}
