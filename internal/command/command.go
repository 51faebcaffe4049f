// Package command defines the robot command set and its wire encoding.
package command

// Side identifies a half of the control surface.
type Side string

const (
	// Left is the rotation half of the screen.
	Left Side = "left"
	// Right is the translation half of the screen.
	Right Side = "right"
)

// Kind names the command variants understood by the controller.
type Kind string

const (
	// KindRotate is a yaw speed command.
	KindRotate Kind = "rotate"
	// KindTranslate is a heading + speed command.
	KindTranslate Kind = "translate"
	// KindPowerToggle toggles motor power on one side.
	KindPowerToggle Kind = "power_toggle"
	// KindLightsToggle toggles the lights on one side.
	KindLightsToggle Kind = "lights_toggle"
)

// LightState is the locally tracked state of one side's lights.
type LightState string

const (
	// LightsOff is the initial state.
	LightsOff LightState = "off"
	// LightsOn follows the first toggle.
	LightsOn LightState = "on"
)

// Toggle returns the opposite state. The zero value counts as off.
func (s LightState) Toggle() LightState {
	if s == LightsOn {
		return LightsOff
	}
	return LightsOn
}

// Command is any value that can be sent to the controller.
type Command interface {
	Kind() Kind
}

// Rotate asks the robot to spin in place. Speed is in [-1,1].
type Rotate struct {
	Speed       float64
	Orientation *float64
}

// Kind implements Command.
func (Rotate) Kind() Kind { return KindRotate }

// Equal compares two rotate commands field by field.
func (r Rotate) Equal(o Rotate) bool {
	if r.Speed != o.Speed {
		return false
	}
	if r.Orientation == nil || o.Orientation == nil {
		return r.Orientation == nil && o.Orientation == nil
	}
	return *r.Orientation == *o.Orientation
}

// Translate asks the robot to drive along Direction degrees (0 = up) at Speed in [0,1].
type Translate struct {
	Speed     float64
	Direction int
}

// Kind implements Command.
func (Translate) Kind() Kind { return KindTranslate }

// PowerToggle flips motor power for one side.
type PowerToggle struct {
	Side Side
}

// Kind implements Command.
func (PowerToggle) Kind() Kind { return KindPowerToggle }

// LightsToggle flips the lights for one side. State is the state after the toggle.
type LightsToggle struct {
	Side  Side
	State LightState
}

// Kind implements Command.
func (LightsToggle) Kind() Kind { return KindLightsToggle }

// StopFor returns the zero-speed command for the axis driven from side.
func StopFor(side Side) Command {
	if side == Left {
		return Rotate{}
	}
	return Translate{}
}

// IsMotion reports whether cmd is a continuously updated axis command.
func IsMotion(cmd Command) bool {
	switch cmd.(type) {
	case Rotate, Translate:
		return true
	default:
		return false
	}
}
