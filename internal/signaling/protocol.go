// Package signaling negotiates the camera WebRTC session with the browser.
package signaling

import "github.com/pion/webrtc/v3"

// Message types exchanged on the signaling socket.
const (
	TypeOffer   = "offer"
	TypeAnswer  = "answer"
	TypeICE     = "ice"
	TypeRestart = "restart"
)

// Message is a websocket signaling payload.
type Message struct {
	T         string                   `json:"t"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}
