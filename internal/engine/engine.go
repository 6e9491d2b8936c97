// Package engine implements the refinement playback state machine.
package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/verte-zerg/passplay/internal/model"
)

const (
	// BaseAnimation is the pass transition time at speed 1.
	BaseAnimation = 600 * time.Millisecond
	// MinSpeed is the floor applied to non-positive speed multipliers.
	MinSpeed = 0.01
	// DefaultSpeed is the multiplier a new engine starts with.
	DefaultSpeed = 1.0

	minAnimation = time.Millisecond
)

var (
	// ErrUnknownProblem reports a problem key missing from the catalog.
	ErrUnknownProblem = errors.New("unknown problem")
	// ErrInvalidPass reports a catalog/index inconsistency.
	ErrInvalidPass = errors.New("invalid pass")
	// ErrPlaybackAborted reports a presentation failure during playback.
	ErrPlaybackAborted = errors.New("playback aborted")
)

// Catalog provides read-only access to problems by key.
type Catalog interface {
	Problem(key string) (model.Problem, bool)
}

// Engine owns problem selection, pass progression, history and speed.
// It is not safe for concurrent use; callers serialize access.
type Engine struct {
	catalog Catalog

	problem  model.Problem
	selected bool

	current int
	max     int
	history []model.Pass
	speed   float64
}

// New returns an engine with no problem selected.
func New(cat Catalog) *Engine {
	return &Engine{catalog: cat, speed: DefaultSpeed}
}

// InitProblem selects a problem and limits playback to requestedPassCount passes.
// On error the engine state is left untouched.
func (e *Engine) InitProblem(key string, requestedPassCount int) error {
	if e.catalog == nil {
		return fmt.Errorf("%w: %q", ErrUnknownProblem, key)
	}
	problem, ok := e.catalog.Problem(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProblem, key)
	}
	if len(problem.Passes) == 0 {
		return fmt.Errorf("%w: problem %q has no passes", ErrInvalidPass, key)
	}
	if requestedPassCount < 1 {
		requestedPassCount = 1
	}
	e.problem = problem
	e.selected = true
	e.max = min(requestedPassCount, len(problem.Passes)) - 1
	e.current = 0
	e.history = nil
	return nil
}

// CurrentPass returns the pass at the current index.
func (e *Engine) CurrentPass() (model.Pass, bool) {
	if !e.selected || e.current < 0 || e.current >= len(e.problem.Passes) {
		return model.Pass{}, false
	}
	return e.problem.Passes[e.current], true
}

// NextPass moves to the next pass, recording the current one in history.
// It returns false without mutating when playback is already at the last pass.
func (e *Engine) NextPass() bool {
	if !e.selected || e.current >= e.max {
		return false
	}
	pass, ok := e.CurrentPass()
	if !ok {
		return false
	}
	e.history = append(e.history, pass)
	e.current++
	return true
}

// IsComplete reports whether the last allowed pass is showing.
func (e *Engine) IsComplete() bool {
	return e.selected && e.current == e.max
}

// ValidSpeed reports whether multiplier is a finite positive speed that
// SetSpeed stores without clamping.
func ValidSpeed(multiplier float64) bool {
	return multiplier > 0 && !math.IsInf(multiplier, 0) && !math.IsNaN(multiplier)
}

// SetSpeed stores the playback speed multiplier. Non-positive and NaN values
// clamp to MinSpeed; +Inf clamps to the largest finite value.
func (e *Engine) SetSpeed(multiplier float64) {
	switch {
	case math.IsNaN(multiplier) || multiplier <= 0:
		multiplier = MinSpeed
	case math.IsInf(multiplier, 1):
		multiplier = math.MaxFloat64
	}
	e.speed = multiplier
}

// Reset returns to the first pass keeping the selection, pass limit and speed.
func (e *Engine) Reset() {
	e.current = 0
	e.history = nil
}

// AnimationDuration is BaseAnimation scaled by the inverse of the speed.
func (e *Engine) AnimationDuration() time.Duration {
	ns := float64(BaseAnimation) / e.speed
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	d := time.Duration(ns)
	if d < minAnimation {
		return minAnimation
	}
	return d
}

// Problem returns the selected problem.
func (e *Engine) Problem() (model.Problem, bool) {
	return e.problem, e.selected
}

// ProblemKey returns the selected problem key, or "" when none is selected.
func (e *Engine) ProblemKey() string {
	if !e.selected {
		return ""
	}
	return e.problem.Key
}

// CurrentIndex returns the zero-based index of the showing pass.
func (e *Engine) CurrentIndex() int {
	return e.current
}

// MaxIndex returns the index of the last pass playback will reach.
func (e *Engine) MaxIndex() int {
	return e.max
}

// TotalPasses returns how many passes playback covers.
func (e *Engine) TotalPasses() int {
	if !e.selected {
		return 0
	}
	return e.max + 1
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	return e.speed
}

// History returns a copy of the passes already shown, oldest first.
func (e *Engine) History() []model.Pass {
	return append([]model.Pass(nil), e.history...)
}

// Progress returns playback progress as a percentage of covered passes.
func (e *Engine) Progress() float64 {
	if !e.selected {
		return 0
	}
	return float64(e.current+1) / float64(e.max+1) * 100
}
