package dispatch

import (
	"errors"
	"testing"

	"github.com/frudas24/owbremote/internal/command"
	"github.com/frudas24/owbremote/internal/shaper"
	"github.com/frudas24/owbremote/internal/testutil"
)

// stick is a settable Axis.
type stick struct{ dx, dy float64 }

// Delta implements Axis.
func (s *stick) Delta() (float64, float64) { return s.dx, s.dy }

// readoutRecorder keeps the last readout pushed.
type readoutRecorder struct {
	last  Readout
	count int
}

// SetReadout implements ReadoutSink.
func (r *readoutRecorder) SetReadout(v Readout) {
	r.last = v
	r.count++
}

// newDispatcher wires a dispatcher to two sticks and a recording sender.
func newDispatcher(policy RestPolicy) (*Dispatcher, *stick, *stick, *testutil.RecordingSender) {
	rot, tr := &stick{}, &stick{}
	sender := &testutil.RecordingSender{}
	return New(shaper.New(120), rot, tr, sender, policy), rot, tr, sender
}

// TestTick_Idempotent verifies a second tick with unchanged input sends nothing.
func TestTick_Idempotent(t *testing.T) {
	d, rot, _, sender := newDispatcher(RestSendAll)
	rot.dx = 60
	if n := d.Tick(); n != 2 {
		t.Fatalf("first tick sent %d, want 2", n)
	}
	if n := d.Tick(); n != 0 {
		t.Fatalf("second tick sent %d, want 0", n)
	}
	if len(sender.Commands()) != 2 {
		t.Fatalf("expected 2 commands total, got %#v", sender.Commands())
	}
}

// TestTick_SendsOnlyChangedAxis verifies each axis is compared separately.
func TestTick_SendsOnlyChangedAxis(t *testing.T) {
	d, rot, tr, sender := newDispatcher(RestSendAll)
	d.Tick()
	sender.Reset()

	tr.dx, tr.dy = 0, -120
	d.Tick()
	rot.dx = -120
	d.Tick()
	got := sender.Commands()
	if len(got) != 2 {
		t.Fatalf("expected 2 commands, got %#v", got)
	}
	if got[0] != (command.Translate{Speed: 1, Direction: 0}) {
		t.Fatalf("unexpected translate %#v", got[0])
	}
	if r, ok := got[1].(command.Rotate); !ok || r.Speed != -1 {
		t.Fatalf("unexpected rotate %#v", got[1])
	}
}

// TestTick_AtMostOnePerAxis verifies a tick never sends more than one command per axis.
func TestTick_AtMostOnePerAxis(t *testing.T) {
	d, rot, tr, sender := newDispatcher(RestSendAll)
	for i := 0; i < 10; i++ {
		rot.dx = float64(i * 13)
		tr.dy = float64(-i * 11)
		sender.Reset()
		d.Tick()
		if sender.CountKind(command.KindRotate) > 1 || sender.CountKind(command.KindTranslate) > 1 {
			t.Fatalf("tick %d sent %#v", i, sender.Commands())
		}
	}
}

// TestTick_IdempotentWhileFailing verifies unchanged input is attempted once while sends fail.
func TestTick_IdempotentWhileFailing(t *testing.T) {
	d, rot, _, sender := newDispatcher(RestSendAll)
	rot.dx = 60
	sender.Err = errors.New("not open")
	for i := 0; i < 30; i++ {
		if n := d.Tick(); n != 0 {
			t.Fatalf("tick %d reported %d successful sends", i, n)
		}
	}
	if got := sender.Attempts(); got != 2 {
		t.Fatalf("expected one attempt per axis, got %d", got)
	}

	rot.dx = 120
	d.Tick()
	if got := sender.Attempts(); got != 3 {
		t.Fatalf("expected a new attempt after the value changed, got %d", got)
	}
}

// TestForget_ResendsAfterFailure verifies the state dropped while closed is sent after Forget.
func TestForget_ResendsAfterFailure(t *testing.T) {
	d, rot, _, sender := newDispatcher(RestSendAll)
	rot.dx = 60
	sender.Err = errors.New("not open")
	d.Tick()
	sender.Err = nil
	if n := d.Tick(); n != 0 {
		t.Fatalf("expected nothing before Forget, got %d", n)
	}
	d.Forget()
	if n := d.Tick(); n != 2 {
		t.Fatalf("expected both axes re-sent, got %d", n)
	}
	if r, ok := sender.Commands()[0].(command.Rotate); !ok || r.Speed != 0.5 {
		t.Fatalf("unexpected first command %#v", sender.Commands()[0])
	}
}

// TestSendNow_FailedStopIsRecorded verifies a failed stop still suppresses an identical tick send.
func TestSendNow_FailedStopIsRecorded(t *testing.T) {
	d, _, _, sender := newDispatcher(RestSendAll)
	sender.Err = errors.New("not open")
	if err := d.SendNow(command.StopFor(command.Left)); err == nil {
		t.Fatalf("expected send error")
	}
	d.Tick()
	if got := sender.CountKind(command.KindRotate); got != 0 {
		t.Fatalf("unexpected recorded rotates %d", got)
	}
	if got := sender.Attempts(); got != 2 {
		t.Fatalf("expected stop plus one translate attempt, got %d", got)
	}
}

// TestRestPolicy_SendAll verifies direction changes at zero speed are sent.
func TestRestPolicy_SendAll(t *testing.T) {
	d, _, _, sender := newDispatcher(RestSendAll)
	d.Tick()
	if err := d.SendNow(command.Translate{Speed: 0, Direction: 90}); err != nil {
		t.Fatalf("SendNow failed: %v", err)
	}
	if n := sender.CountKind(command.KindTranslate); n != 2 {
		t.Fatalf("expected direction-only change sent, got %d translates", n)
	}
}

// TestRestPolicy_IgnoreDirection verifies direction jitter at rest is suppressed.
func TestRestPolicy_IgnoreDirection(t *testing.T) {
	d, _, tr, sender := newDispatcher(RestIgnoreDirection)
	d.Tick()
	if err := d.SendNow(command.Translate{Speed: 0, Direction: 90}); err != nil {
		t.Fatalf("SendNow failed: %v", err)
	}
	if n := sender.CountKind(command.KindTranslate); n != 1 {
		t.Fatalf("expected direction-only change suppressed, got %d translates", n)
	}
	tr.dx = 120
	d.Tick()
	if n := sender.CountKind(command.KindTranslate); n != 2 {
		t.Fatalf("expected moving translate sent, got %d translates", n)
	}
}

// TestSendNow_StopUpdatesLastSent verifies a stop is not repeated by the next tick.
func TestSendNow_StopUpdatesLastSent(t *testing.T) {
	d, rot, _, sender := newDispatcher(RestSendAll)
	rot.dx = 60
	d.Tick()
	rot.dx = 0
	if err := d.SendNow(command.Rotate{}); err != nil {
		t.Fatalf("SendNow failed: %v", err)
	}
	if err := d.SendNow(command.Rotate{}); err != nil {
		t.Fatalf("SendNow failed: %v", err)
	}
	d.Tick()
	if n := sender.CountKind(command.KindRotate); n != 2 {
		t.Fatalf("expected rotate then one stop, got %#v", sender.Commands())
	}
}

// TestSendNow_DiscreteAlwaysSent verifies toggles bypass change detection.
func TestSendNow_DiscreteAlwaysSent(t *testing.T) {
	d, _, _, sender := newDispatcher(RestSendAll)
	for i := 0; i < 2; i++ {
		if err := d.SendNow(command.PowerToggle{Side: command.Left}); err != nil {
			t.Fatalf("SendNow failed: %v", err)
		}
	}
	if n := sender.CountKind(command.KindPowerToggle); n != 2 {
		t.Fatalf("expected 2 toggles, got %d", n)
	}
}

// TestSendNow_ReturnsSenderError verifies send failures surface to the caller.
func TestSendNow_ReturnsSenderError(t *testing.T) {
	d, _, _, sender := newDispatcher(RestSendAll)
	want := errors.New("down")
	sender.Err = want
	if err := d.SendNow(command.LightsToggle{Side: command.Right}); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

// TestForget_ResendsCurrentState verifies Forget makes the next tick send both axes again.
func TestForget_ResendsCurrentState(t *testing.T) {
	d, _, _, _ := newDispatcher(RestSendAll)
	d.Tick()
	if n := d.Tick(); n != 0 {
		t.Fatalf("expected steady state, got %d", n)
	}
	d.Forget()
	if n := d.Tick(); n != 2 {
		t.Fatalf("expected both axes re-sent, got %d", n)
	}
}

// TestTick_PushesReadout verifies the readout mirrors the shaped values.
func TestTick_PushesReadout(t *testing.T) {
	d, rot, tr, _ := newDispatcher(RestSendAll)
	rec := &readoutRecorder{}
	d.SetReadoutSink(rec)
	rot.dx = -60
	tr.dx = 120
	d.Tick()
	want := Readout{Yaw: -0.5, Speed: 1, Direction: 90}
	if rec.last != want || rec.count != 1 {
		t.Fatalf("readout = %#v (%d), want %#v", rec.last, rec.count, want)
	}
}

// TestParseRestPolicy verifies config spellings.
func TestParseRestPolicy(t *testing.T) {
	for in, want := range map[string]RestPolicy{"": RestSendAll, "send_all": RestSendAll, " Ignore_Direction ": RestIgnoreDirection} {
		got, err := ParseRestPolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseRestPolicy(%q) = %v, %v", in, got, err)
		}
		if _, err := ParseRestPolicy(got.String()); err != nil {
			t.Fatalf("String() round trip failed for %v", got)
		}
	}
	if _, err := ParseRestPolicy("sometimes"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
