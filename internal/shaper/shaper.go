// Package shaper converts joystick displacement into bounded motion values.
package shaper

import (
	"math"

	"github.com/frudas24/owbremote/internal/command"
)

// DefaultReferenceRadius is the displacement in pixels that maps to full speed.
const DefaultReferenceRadius = 120.0

// Shaper maps pixel deltas to rotate/translate commands.
type Shaper struct {
	radius float64
}

// New returns a shaper for the given reference radius, falling back to the default for invalid values.
func New(radius float64) Shaper {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		radius = DefaultReferenceRadius
	}
	return Shaper{radius: radius}
}

// Radius returns the reference radius in use.
func (s Shaper) Radius() float64 {
	if s.radius == 0 {
		return DefaultReferenceRadius
	}
	return s.radius
}

// Rotation returns the yaw command for a displacement, rounded to one decimal.
// A non-negative dx spins positive.
func (s Shaper) Rotation(dx, dy float64) command.Rotate {
	mag, norm := s.normalize(dx, dy)
	if mag == 0 {
		return command.Rotate{}
	}
	sign := 1.0
	if dx < 0 {
		sign = -1
	}
	speed := roundTo(sign*norm, 10)
	if speed == 0 {
		speed = 0 // drop negative zero
	}
	return command.Rotate{Speed: speed}
}

// Translation returns the heading command for a displacement.
// Direction 0 points up the screen and grows clockwise.
func (s Shaper) Translation(dx, dy float64) command.Translate {
	mag, norm := s.normalize(dx, dy)
	if mag == 0 {
		return command.Translate{}
	}
	angle := math.Atan2(dy, dx)*180/math.Pi + 90
	angle = math.Mod(angle+360, 360)
	return command.Translate{
		Speed:     roundTo(norm, 100),
		Direction: int(math.Round(angle)) % 360,
	}
}

// normalize returns the displacement magnitude and its value clamped to [0,1].
func (s Shaper) normalize(dx, dy float64) (float64, float64) {
	if !finite(dx) || !finite(dy) {
		return 0, 0
	}
	mag := math.Hypot(dx, dy)
	if mag == 0 {
		return 0, 0
	}
	return mag, math.Min(1, mag/s.Radius())
}

// roundTo rounds v to 1/scale steps.
func roundTo(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
