// Package gesture classifies global taps, double-taps and long-presses per screen side.
package gesture

import (
	"math"
	"time"

	"github.com/frudas24/owbremote/internal/clock"
	"github.com/frudas24/owbremote/internal/command"
	"github.com/frudas24/owbremote/internal/pointer"
)

const (
	// DefaultMoveThreshold is how far a touch may wander, in pixels, and still count as a tap.
	DefaultMoveThreshold = 20.0
	// DefaultLongPress is how long a still touch must be held to toggle power.
	DefaultLongPress = 1000 * time.Millisecond
	// DefaultDoubleTap is the window between two taps on the same side that toggles lights.
	DefaultDoubleTap = 300 * time.Millisecond
)

// Config holds the classifier thresholds.
type Config struct {
	MoveThreshold float64
	LongPress     time.Duration
	DoubleTap     time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		MoveThreshold: DefaultMoveThreshold,
		LongPress:     DefaultLongPress,
		DoubleTap:     DefaultDoubleTap,
	}
}

// ActivityReader reports whether a joystick currently owns the touch surface.
type ActivityReader interface {
	Active() bool
}

type phase int

const (
	phaseIdle phase = iota
	phasePending
	phaseDragging
)

// sideState is the gesture state of one half of the surface.
type sideState struct {
	phase     phase
	pointer   int
	originX   float64
	originY   float64
	moved     bool
	lastTap   time.Time
	longPress clock.Timer
	gen       int
	lights    command.LightState
}

// Classifier turns global touch events into discrete commands.
// It is not safe for concurrent use; drive it from a single event loop.
type Classifier struct {
	cfg      Config
	sched    clock.Scheduler
	activity ActivityReader
	emit     func(command.Command)
	now      func() time.Time
	sides    map[command.Side]*sideState
	pointers map[int]command.Side
	primary  command.Side
}

// New returns a classifier. Zero thresholds in cfg fall back to the defaults.
func New(cfg Config, sched clock.Scheduler, activity ActivityReader, emit func(command.Command)) *Classifier {
	def := DefaultConfig()
	if cfg.MoveThreshold <= 0 {
		cfg.MoveThreshold = def.MoveThreshold
	}
	if cfg.LongPress <= 0 {
		cfg.LongPress = def.LongPress
	}
	if cfg.DoubleTap <= 0 {
		cfg.DoubleTap = def.DoubleTap
	}
	if sched == nil {
		sched = clock.Real{}
	}
	if emit == nil {
		emit = func(command.Command) {}
	}
	return &Classifier{
		cfg:      cfg,
		sched:    sched,
		activity: activity,
		emit:     emit,
		now:      time.Now,
		sides: map[command.Side]*sideState{
			command.Left:  {lights: command.LightsOff},
			command.Right: {lights: command.LightsOff},
		},
		pointers: make(map[int]command.Side),
		primary:  command.Left,
	}
}

// SetNowFunc overrides the clock used when a sample carries no timestamp.
func (c *Classifier) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		c.now = fn
	}
}

// Lights returns the locally tracked light state for side.
func (c *Classifier) Lights(side command.Side) command.LightState {
	if st, ok := c.sides[side]; ok {
		return st.lights
	}
	return command.LightsOff
}

// TouchStart begins a gesture on the side under the sample and arms the long-press timer.
func (c *Classifier) TouchStart(s pointer.Sample) {
	if c.joystickActive() {
		return
	}
	side := s.Side()
	st := c.sides[side]
	if st.phase != phaseIdle {
		delete(c.pointers, st.pointer)
	}
	c.cancelLongPress(st)

	st.phase = phasePending
	st.pointer = s.ID
	st.originX = s.X
	st.originY = s.Y
	st.moved = false
	if s.ID != pointer.NoID {
		c.pointers[s.ID] = side
	}
	c.primary = side

	gen := st.gen
	st.longPress = c.sched.AfterFunc(c.cfg.LongPress, func() {
		c.fireLongPress(side, gen)
	})
}

// TouchMove cancels the pending long-press once the touch leaves the move threshold.
func (c *Classifier) TouchMove(s pointer.Sample) {
	if c.joystickActive() {
		return
	}
	st := c.resolve(s)
	if st == nil || st.phase != phasePending {
		return
	}
	if math.Hypot(s.X-st.originX, s.Y-st.originY) <= c.cfg.MoveThreshold {
		return
	}
	c.cancelLongPress(st)
	st.moved = true
	st.phase = phaseDragging
}

// TouchEnd completes the gesture, evaluating tap and double-tap for still touches.
func (c *Classifier) TouchEnd(s pointer.Sample) {
	st := c.resolve(s)
	if st == nil {
		return
	}
	// The timer belongs to this touch and is released even when a joystick took over.
	c.cancelLongPress(st)
	delete(c.pointers, st.pointer)
	prev := st.phase
	st.phase = phaseIdle
	if c.joystickActive() || prev != phasePending || st.moved {
		return
	}

	at := s.At
	if at.IsZero() {
		at = c.now()
	}
	if !st.lastTap.IsZero() && at.Sub(st.lastTap) < c.cfg.DoubleTap {
		st.lastTap = time.Time{}
		st.lights = st.lights.Toggle()
		c.emit(command.LightsToggle{Side: c.sideOf(st), State: st.lights})
		return
	}
	st.lastTap = at
}

// fireLongPress emits a power toggle if the touch that armed the timer is still pending.
func (c *Classifier) fireLongPress(side command.Side, gen int) {
	st := c.sides[side]
	if st.gen != gen || st.phase != phasePending {
		return
	}
	st.longPress = nil
	st.gen++
	st.phase = phaseIdle
	if c.joystickActive() {
		return
	}
	c.emit(command.PowerToggle{Side: side})
}

// cancelLongPress stops the armed timer and invalidates any callback already queued.
func (c *Classifier) cancelLongPress(st *sideState) {
	if st.longPress != nil {
		st.longPress.Stop()
		st.longPress = nil
	}
	st.gen++
}

// resolve finds the side state a move/end sample continues.
// Samples without a pointer id fall back to the most recent touch.
func (c *Classifier) resolve(s pointer.Sample) *sideState {
	if s.ID == pointer.NoID {
		st := c.sides[c.primary]
		if st.phase == phaseIdle {
			return nil
		}
		return st
	}
	side, ok := c.pointers[s.ID]
	if !ok {
		return nil
	}
	st := c.sides[side]
	if st.pointer != s.ID {
		return nil
	}
	return st
}

// sideOf returns the side key owning st.
func (c *Classifier) sideOf(st *sideState) command.Side {
	if c.sides[command.Left] == st {
		return command.Left
	}
	return command.Right
}

// joystickActive reports the shared activity flag.
func (c *Classifier) joystickActive() bool {
	return c.activity != nil && c.activity.Active()
}
