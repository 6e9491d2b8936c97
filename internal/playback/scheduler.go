// Package playback drives timed advancement of a refinement engine.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verte-zerg/passplay/internal/engine"
	"github.com/verte-zerg/passplay/internal/metrics"
	"github.com/verte-zerg/passplay/internal/model"
)

// DefaultPause is the dwell time after each pass is shown.
const DefaultPause = time.Second

// Presenter renders playback events. A hook that returns an error or panics
// aborts playback. Hooks run while the scheduler is locked and must not call
// back into it.
type Presenter interface {
	OnPassShown(problem model.Problem, pass model.Pass, index, total int) error
	OnMetricsUpdated(m model.Metrics, series model.Series) error
	OnChangeDescribed(text string) error
	OnComplete() error
	OnAborted(err error)
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed calls.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules with time.AfterFunc.
type RealClock struct{}

// AfterFunc implements Clock.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// State is a snapshot of scheduler and engine state for display.
type State struct {
	ProblemKey string
	Index      int
	Total      int
	Speed      float64
	Progress   float64
	Running    bool
	Complete   bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithPause sets the dwell time added to every tick.
func WithPause(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.pause = d
		}
	}
}

// WithLogger sets the logger used for aborted playback.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler advances an engine on a timer and reports each pass to a Presenter.
// At most one tick is pending at a time.
type Scheduler struct {
	mu        sync.Mutex
	eng       *engine.Engine
	presenter Presenter
	clock     Clock
	pause     time.Duration
	logger    *slog.Logger

	timer   Timer
	gen     uint64
	running bool
}

// New returns a scheduler for eng.
func New(eng *engine.Engine, p Presenter, opts ...Option) *Scheduler {
	s := &Scheduler{
		eng:       eng,
		presenter: p,
		clock:     RealClock{},
		pause:     DefaultPause,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start cancels any pending tick, shows the current pass and schedules the next one.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

// Cancel stops playback. The engine keeps its current pass.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Restart rewinds to the first pass and starts playback again.
func (s *Scheduler) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.eng.Reset()
	return s.startLocked()
}

// Reset stops playback, rewinds to the first pass and shows it.
func (s *Scheduler) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.eng.Reset()
	return s.showLocked()
}

// Select switches to another problem. An unknown key leaves playback untouched.
func (s *Scheduler) Select(key string, passes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.eng.InitProblem(key, passes); err != nil {
		return err
	}
	s.stopLocked()
	return s.showLocked()
}

// Step advances one pass while playback is stopped.
func (s *Scheduler) Step() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || !s.eng.NextPass() {
		return false, nil
	}
	if err := s.surfaceLocked(); err != nil {
		return true, s.abortLocked(err)
	}
	return true, nil
}

// SetSpeed changes the speed multiplier; the next scheduled tick uses it.
func (s *Scheduler) SetSpeed(multiplier float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eng.SetSpeed(multiplier)
}

// Running reports whether a tick is pending.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// State returns a snapshot for display.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ProblemKey: s.eng.ProblemKey(),
		Index:      s.eng.CurrentIndex(),
		Total:      s.eng.TotalPasses(),
		Speed:      s.eng.Speed(),
		Progress:   s.eng.Progress(),
		Running:    s.running,
		Complete:   s.eng.IsComplete(),
	}
}

// AnimationDuration is the transition time of a pass at the current speed.
func (s *Scheduler) AnimationDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.AnimationDuration()
}

// Interval is the delay before the next tick at the current speed.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.AnimationDuration() + s.pause
}

func (s *Scheduler) startLocked() error {
	s.stopLocked()
	if _, ok := s.eng.CurrentPass(); !ok {
		return fmt.Errorf("start playback: %w", engine.ErrInvalidPass)
	}
	s.running = true
	if err := s.surfaceLocked(); err != nil {
		return s.abortLocked(err)
	}
	s.scheduleLocked()
	return nil
}

func (s *Scheduler) showLocked() error {
	if _, ok := s.eng.CurrentPass(); !ok {
		return nil
	}
	if err := s.surfaceLocked(); err != nil {
		return s.abortLocked(err)
	}
	return nil
}

func (s *Scheduler) scheduleLocked() {
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.eng.AnimationDuration()+s.pause, func() {
		s.tick(gen)
	})
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || gen != s.gen {
		return
	}
	s.timer = nil
	if s.eng.IsComplete() {
		s.stopLocked()
		if err := s.call("OnComplete", s.presenter.OnComplete); err != nil {
			_ = s.abortLocked(err)
		}
		return
	}
	if !s.eng.NextPass() {
		s.stopLocked()
		return
	}
	if err := s.surfaceLocked(); err != nil {
		_ = s.abortLocked(err)
		return
	}
	s.scheduleLocked()
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.running = false
	s.gen++
}

// surfaceLocked reports the current pass, its metrics and the change from the previous pass.
func (s *Scheduler) surfaceLocked() error {
	problem, _ := s.eng.Problem()
	pass, ok := s.eng.CurrentPass()
	if !ok {
		return fmt.Errorf("surface pass: %w", engine.ErrInvalidPass)
	}
	index := s.eng.CurrentIndex()
	total := s.eng.TotalPasses()
	if err := s.call("OnPassShown", func() error {
		return s.presenter.OnPassShown(problem, pass, index, total)
	}); err != nil {
		return err
	}

	m, err := metrics.FormatMetrics(&pass)
	if err != nil {
		return err
	}
	history := s.eng.History()
	series := metrics.BuildSeries(history, m)
	if err := s.call("OnMetricsUpdated", func() error {
		return s.presenter.OnMetricsUpdated(m, series)
	}); err != nil {
		return err
	}

	if len(history) == 0 {
		return nil
	}
	text := metrics.DescribeChange(history[len(history)-1], pass)
	return s.call("OnChangeDescribed", func() error {
		return s.presenter.OnChangeDescribed(text)
	})
}

func (s *Scheduler) call(hook string, f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", hook, r)
		}
	}()
	if err := f(); err != nil {
		return fmt.Errorf("%s: %w", hook, err)
	}
	return nil
}

func (s *Scheduler) abortLocked(cause error) error {
	s.stopLocked()
	err := fmt.Errorf("%w: %w", engine.ErrPlaybackAborted, cause)
	s.logger.Warn("playback aborted",
		"problem", s.eng.ProblemKey(),
		"pass", s.eng.CurrentIndex()+1,
		"error", cause)
	_ = s.call("OnAborted", func() error {
		s.presenter.OnAborted(err)
		return nil
	})
	return err
}
