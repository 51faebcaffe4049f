// Package remote assembles the touch surface and drives it from one event loop.
package remote

import (
	"github.com/frudas24/owbremote/internal/clock"
	"github.com/frudas24/owbremote/internal/command"
	"github.com/frudas24/owbremote/internal/dispatch"
	"github.com/frudas24/owbremote/internal/gesture"
	"github.com/frudas24/owbremote/internal/joystick"
	"github.com/frudas24/owbremote/internal/pointer"
	"github.com/frudas24/owbremote/internal/shaper"
)

// Options tunes the surface.
type Options struct {
	ReferenceRadius     float64
	ActivationThreshold float64
	Gesture             gesture.Config
	RestPolicy          dispatch.RestPolicy
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		ReferenceRadius:     shaper.DefaultReferenceRadius,
		ActivationThreshold: joystick.DefaultActivationThreshold,
		Gesture:             gesture.DefaultConfig(),
		RestPolicy:          dispatch.RestSendAll,
	}
}

// Surface routes pointer events to the gesture classifier and both sticks.
// All methods must be called from the same goroutine, normally a Loop.
type Surface struct {
	activity   *joystick.Activity
	left       *joystick.Adapter
	right      *joystick.Adapter
	gestures   *gesture.Classifier
	dispatcher *dispatch.Dispatcher
	onDiscrete func(command.Command)
	width      float64
	// primary is the stick that claimed the latest touch-start; id-less samples go only to it.
	primary *joystick.Adapter
}

// NewSurface wires the pipeline. sched drives the long-press timer and must deliver
// callbacks on the surface goroutine.
func NewSurface(opts Options, sender dispatch.Sender, sched clock.Scheduler) *Surface {
	s := &Surface{activity: &joystick.Activity{}}
	s.left = joystick.NewAdapter(command.Left, opts.ActivationThreshold, s.activity, s.sendNow)
	s.right = joystick.NewAdapter(command.Right, opts.ActivationThreshold, s.activity, s.sendNow)
	s.gestures = gesture.New(opts.Gesture, sched, s.activity, s.discrete)
	s.dispatcher = dispatch.New(shaper.New(opts.ReferenceRadius), s.left, s.right, sender, opts.RestPolicy)
	return s
}

// OnDiscrete registers a hook that sees every toggle after it is handed to the sender.
func (s *Surface) OnDiscrete(fn func(command.Command)) {
	s.onDiscrete = fn
}

// SetReadoutSink forwards per-tick readouts to sink.
func (s *Surface) SetReadoutSink(sink dispatch.ReadoutSink) {
	s.dispatcher.SetReadoutSink(sink)
}

// PointerDown starts a touch.
func (s *Surface) PointerDown(p pointer.Sample) {
	p = s.withWidth(p)
	s.gestures.TouchStart(p)
	switch {
	case s.left.TouchStart(p):
		s.primary = s.left
	case s.right.TouchStart(p):
		s.primary = s.right
	default:
		s.primary = nil
	}
}

// PointerMove continues a touch.
func (s *Surface) PointerMove(p pointer.Sample) {
	p = s.withWidth(p)
	s.gestures.TouchMove(p)
	for _, stick := range s.sticksFor(p) {
		stick.TouchMove(p)
	}
}

// PointerUp ends a touch. The classifier sees it before the sticks release the activity flag.
func (s *Surface) PointerUp(p pointer.Sample) {
	p = s.withWidth(p)
	s.gestures.TouchEnd(p)
	for _, stick := range s.sticksFor(p) {
		stick.TouchEnd(p)
	}
}

// Tick runs one dispatch round.
func (s *Surface) Tick() int {
	return s.dispatcher.Tick()
}

// Forget makes the next tick re-send both axes.
func (s *Surface) Forget() {
	s.dispatcher.Forget()
}

// JoystickActive reports the shared activity flag.
func (s *Surface) JoystickActive() bool {
	return s.activity.Active()
}

// Lights returns the tracked light state for side.
func (s *Surface) Lights(side command.Side) command.LightState {
	return s.gestures.Lights(side)
}

// sendNow sends stop commands from the sticks. Failures were already logged by the sender.
func (s *Surface) sendNow(cmd command.Command) {
	_ = s.dispatcher.SendNow(cmd)
}

// discrete sends a gesture toggle and reports it to the hook.
func (s *Surface) discrete(cmd command.Command) {
	_ = s.dispatcher.SendNow(cmd)
	if s.onDiscrete != nil {
		s.onDiscrete(cmd)
	}
}

// withWidth fills a missing viewport width from the last sample that carried one.
func (s *Surface) withWidth(p pointer.Sample) pointer.Sample {
	if p.Width > 0 {
		s.width = p.Width
	} else {
		p.Width = s.width
	}
	return p
}

// sticksFor returns the adapters that may consume p. A sample without id falls back to the primary stick.
func (s *Surface) sticksFor(p pointer.Sample) []*joystick.Adapter {
	if p.ID != pointer.NoID {
		return []*joystick.Adapter{s.left, s.right}
	}
	if s.primary == nil {
		return nil
	}
	return []*joystick.Adapter{s.primary}
}
