// Package joystick binds pointer capture to the two virtual sticks.
package joystick

import (
	"math"

	"github.com/frudas24/owbremote/internal/command"
	"github.com/frudas24/owbremote/internal/pointer"
)

// DefaultActivationThreshold is the displacement in pixels before a stick starts driving.
const DefaultActivationThreshold = 20.0

// Activity is the shared "a joystick is driving" flag.
// Only adapters write it; everyone else reads it through Active.
type Activity struct {
	left  bool
	right bool
}

// Active reports whether any stick is activated.
func (a *Activity) Active() bool {
	return a.left || a.right
}

// set records whether side is driving.
func (a *Activity) set(side command.Side, on bool) {
	if side == command.Left {
		a.left = on
		return
	}
	a.right = on
}

// Adapter tracks one pointer on one half of the surface.
// It is not safe for concurrent use.
type Adapter struct {
	side      command.Side
	threshold float64
	activity  *Activity
	emit      func(command.Command)

	tracking  bool
	pointer   int
	originX   float64
	originY   float64
	dx        float64
	dy        float64
	activated bool
}

// NewAdapter returns an adapter for side. A non-positive threshold uses the default.
func NewAdapter(side command.Side, threshold float64, activity *Activity, emit func(command.Command)) *Adapter {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultActivationThreshold
	}
	if activity == nil {
		activity = &Activity{}
	}
	if emit == nil {
		emit = func(command.Command) {}
	}
	return &Adapter{side: side, threshold: threshold, activity: activity, emit: emit}
}

// Side returns the half this adapter owns.
func (a *Adapter) Side() command.Side { return a.side }

// Accepts reports whether a touch-start at x on a surface of width belongs to this adapter.
func (a *Adapter) Accepts(x, width float64) bool {
	return pointer.Zone(x, width) == a.side
}

// TouchStart claims the pointer if it lands in this zone and no other pointer is tracked.
func (a *Adapter) TouchStart(s pointer.Sample) bool {
	if a.tracking || !a.Accepts(s.X, s.Width) {
		return false
	}
	a.tracking = true
	a.pointer = s.ID
	a.originX = s.X
	a.originY = s.Y
	a.dx, a.dy = 0, 0
	a.activated = false
	return true
}

// TouchMove updates the displacement and activates once it passes the threshold.
func (a *Adapter) TouchMove(s pointer.Sample) {
	if !a.owns(s) {
		return
	}
	a.dx = s.X - a.originX
	a.dy = s.Y - a.originY
	if !a.activated && math.Hypot(a.dx, a.dy) > a.threshold {
		a.activated = true
		a.activity.set(a.side, true)
	}
}

// TouchEnd releases the pointer, sending a stop if the stick was driving.
func (a *Adapter) TouchEnd(s pointer.Sample) {
	if !a.owns(s) {
		return
	}
	wasActive := a.activated
	a.tracking = false
	a.activated = false
	a.dx, a.dy = 0, 0
	if !wasActive {
		return
	}
	a.emit(command.StopFor(a.side))
	a.activity.set(a.side, false)
}

// Delta returns the current displacement. It stays zero until the stick activates.
func (a *Adapter) Delta() (float64, float64) {
	if !a.activated {
		return 0, 0
	}
	return a.dx, a.dy
}

// Activated reports whether the stick is currently driving.
func (a *Adapter) Activated() bool { return a.activated }

// Tracking reports whether a pointer is held by this adapter.
func (a *Adapter) Tracking() bool { return a.tracking }

// owns reports whether s continues the tracked pointer.
func (a *Adapter) owns(s pointer.Sample) bool {
	if !a.tracking {
		return false
	}
	return s.ID == a.pointer || s.ID == pointer.NoID
}
