// Package pointer describes raw pointer samples delivered by the browser surface.
package pointer

import (
	"time"

	"github.com/frudas24/owbremote/internal/command"
)

// NoID marks a sample whose pointer identifier was missing.
const NoID = -1

// Sample is one raw pointer position. It is consumed immediately and never retained.
type Sample struct {
	ID    int
	X     float64
	Y     float64
	Width float64
	At    time.Time
}

// Zone returns the side of the surface that owns x. The midline belongs to the right side.
func Zone(x, width float64) command.Side {
	if x < width/2 {
		return command.Left
	}
	return command.Right
}

// Side returns the zone of the sample using its viewport width.
func (s Sample) Side() command.Side {
	return Zone(s.X, s.Width)
}
