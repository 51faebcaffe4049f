package signaling

import (
	"encoding/json"
	"testing"
)

// TestProtocol_Offer verifies decoding an offer message.
func TestProtocol_Offer(t *testing.T) {
	var msg Message
	if err := json.Unmarshal([]byte(`{"t":"offer","sdp":"v=0"}`), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.T != TypeOffer || msg.SDP != "v=0" || msg.Candidate != nil {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

// TestProtocol_ICE verifies decoding an ICE candidate message.
func TestProtocol_ICE(t *testing.T) {
	var msg Message
	payload := `{"t":"ice","candidate":{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.3 54400 typ host","sdpMid":"0"}}`
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.T != TypeICE || msg.Candidate == nil || msg.Candidate.SDPMid == nil || *msg.Candidate.SDPMid != "0" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

// TestProtocol_RestartOmitsEmpty verifies a restart encodes without sdp or candidate.
func TestProtocol_RestartOmitsEmpty(t *testing.T) {
	raw, err := json.Marshal(Message{T: TypeRestart})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(raw) != `{"t":"restart"}` {
		t.Fatalf("unexpected encoding: %s", raw)
	}
}
