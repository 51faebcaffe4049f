package control

import (
	"encoding/json"
	"testing"

	"github.com/frudas24/owbremote/internal/pointer"
)

// TestProtocol_Down verifies decoding a down message.
func TestProtocol_Down(t *testing.T) {
	var msg Message
	if err := json.Unmarshal([]byte(`{"t":"down","id":1,"x":120.5,"y":40,"w":400,"ts":1700000000123}`), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	s := msg.Sample()
	if msg.T != "down" || s.ID != 1 || s.X != 120.5 || s.Y != 40 || s.Width != 400 {
		t.Fatalf("unexpected sample: %+v", s)
	}
	if s.At.UnixMilli() != 1700000000123 {
		t.Fatalf("unexpected timestamp %v", s.At)
	}
}

// TestProtocol_MissingID verifies an absent id falls back to NoID while id 0 is kept.
func TestProtocol_MissingID(t *testing.T) {
	var msg Message
	if err := json.Unmarshal([]byte(`{"t":"move","x":1,"y":2,"w":400}`), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if s := msg.Sample(); s.ID != pointer.NoID || !s.At.IsZero() {
		t.Fatalf("unexpected sample: %+v", s)
	}
	if err := json.Unmarshal([]byte(`{"t":"move","id":0,"x":1,"y":2,"w":400}`), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if s := msg.Sample(); s.ID != 0 {
		t.Fatalf("expected id 0, got %d", s.ID)
	}
}

// TestProtocol_ReadoutShape verifies the outbound readout field names.
func TestProtocol_ReadoutShape(t *testing.T) {
	data, err := json.Marshal(ReadoutMessage{T: "readout", Yaw: -0.3, Speed: 0.5, Dir: 90})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"t":"readout","yaw":-0.3,"speed":0.5,"dir":90}` {
		t.Fatalf("unexpected payload %s", data)
	}
}
