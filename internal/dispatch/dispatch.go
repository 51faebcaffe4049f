// Package dispatch emits axis commands on a fixed cadence, sending only on change.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/frudas24/owbremote/internal/command"
	"github.com/frudas24/owbremote/internal/shaper"
)

// Sender transmits one command. Implementations drop rather than queue.
type Sender interface {
	Send(cmd command.Command) error
}

// Axis exposes the current stick displacement in pixels.
type Axis interface {
	Delta() (float64, float64)
}

// Readout is the numeric display pushed after each tick.
type Readout struct {
	Yaw       float64 `json:"yaw"`
	Speed     float64 `json:"speed"`
	Direction int     `json:"dir"`
}

// ReadoutSink receives the readout after each tick.
type ReadoutSink interface {
	SetReadout(Readout)
}

// RestPolicy decides whether a direction-only change at rest is worth a send.
type RestPolicy int

const (
	// RestSendAll sends on any field change, including direction jitter at zero speed.
	RestSendAll RestPolicy = iota
	// RestIgnoreDirection ignores direction changes while both speeds are zero.
	RestIgnoreDirection
)

// String returns the config spelling of the policy.
func (p RestPolicy) String() string {
	if p == RestIgnoreDirection {
		return "ignore_direction"
	}
	return "send_all"
}

// ParseRestPolicy parses the config spelling of a policy. Empty means RestSendAll.
func ParseRestPolicy(v string) (RestPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "send_all":
		return RestSendAll, nil
	case "ignore_direction":
		return RestIgnoreDirection, nil
	default:
		return RestSendAll, fmt.Errorf("invalid rest policy %q", v)
	}
}

// Dispatcher compares shaped axis commands with the last ones sent.
// It is not safe for concurrent use; drive it from the event loop.
type Dispatcher struct {
	shaper      shaper.Shaper
	rotation    Axis
	translation Axis
	sender      Sender
	policy      RestPolicy
	readout     ReadoutSink

	lastRotate    *command.Rotate
	lastTranslate *command.Translate
}

// New returns a dispatcher reading the two axes and sending through sender.
func New(s shaper.Shaper, rotation, translation Axis, sender Sender, policy RestPolicy) *Dispatcher {
	return &Dispatcher{
		shaper:      s,
		rotation:    rotation,
		translation: translation,
		sender:      sender,
		policy:      policy,
	}
}

// SetReadoutSink sets where the per-tick readout goes.
func (d *Dispatcher) SetReadoutSink(sink ReadoutSink) {
	d.readout = sink
}

// Tick shapes both axes and sends what changed. It returns how many commands were sent.
func (d *Dispatcher) Tick() int {
	rot := d.shaper.Rotation(d.rotation.Delta())
	tr := d.shaper.Translation(d.translation.Delta())
	if d.readout != nil {
		d.readout.SetReadout(Readout{Yaw: rot.Speed, Speed: tr.Speed, Direction: tr.Direction})
	}

	sent := 0
	if d.rotateChanged(rot) && d.send(rot) {
		sent++
	}
	if d.translateChanged(tr) && d.send(tr) {
		sent++
	}
	return sent
}

// SendNow sends cmd immediately, outside the tick.
// Motion commands update the last-sent record, even when the send fails, and are
// skipped when identical to it.
func (d *Dispatcher) SendNow(cmd command.Command) error {
	switch c := cmd.(type) {
	case command.Rotate:
		if !d.rotateChanged(c) {
			return nil
		}
	case command.Translate:
		if !d.translateChanged(c) {
			return nil
		}
	}
	d.record(cmd)
	return d.sender.Send(cmd)
}

// Forget drops the last-sent record so the next tick re-sends the current state.
// Call it whenever the link opens.
func (d *Dispatcher) Forget() {
	d.lastRotate = nil
	d.lastTranslate = nil
}

// send records cmd and transmits it. A failed send is not retried until the value
// changes or Forget runs, so a closed link sees one attempt per change.
func (d *Dispatcher) send(cmd command.Command) bool {
	d.record(cmd)
	return d.sender.Send(cmd) == nil
}

// record remembers cmd as the last one sent on its axis.
func (d *Dispatcher) record(cmd command.Command) {
	switch c := cmd.(type) {
	case command.Rotate:
		d.lastRotate = &c
	case command.Translate:
		d.lastTranslate = &c
	}
}

// rotateChanged reports whether r differs from the last rotate sent.
func (d *Dispatcher) rotateChanged(r command.Rotate) bool {
	if d.lastRotate == nil {
		return true
	}
	return !d.lastRotate.Equal(r)
}

// translateChanged reports whether t differs from the last translate sent under the rest policy.
func (d *Dispatcher) translateChanged(t command.Translate) bool {
	last := d.lastTranslate
	if last == nil {
		return true
	}
	if d.policy == RestIgnoreDirection && last.Speed == 0 && t.Speed == 0 {
		return false
	}
	return *last != t
}

