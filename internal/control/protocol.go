// Package control carries pointer input from the browser and pushes display state back.
package control

import (
	"time"

	"github.com/frudas24/owbremote/internal/pointer"
)

// Message is an inbound control websocket payload.
type Message struct {
	T  string  `json:"t"`
	ID *int    `json:"id,omitempty"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	W  float64 `json:"w"`
	TS int64   `json:"ts,omitempty"`
}

// Sample converts the message to a pointer sample. A missing id maps to pointer.NoID
// and a missing timestamp leaves At zero.
func (m Message) Sample() pointer.Sample {
	id := pointer.NoID
	if m.ID != nil {
		id = *m.ID
	}
	s := pointer.Sample{ID: id, X: m.X, Y: m.Y, Width: m.W}
	if m.TS > 0 {
		s.At = time.UnixMilli(m.TS)
	}
	return s
}

// StatusMessage reports link health to the browser.
type StatusMessage struct {
	T         string `json:"t"`
	Connected bool   `json:"connected"`
}

// ReadoutMessage mirrors the current yaw/move values.
type ReadoutMessage struct {
	T     string  `json:"t"`
	Yaw   float64 `json:"yaw"`
	Speed float64 `json:"speed"`
	Dir   int     `json:"dir"`
}

// ToggleMessage reports a discrete command that was sent.
type ToggleMessage struct {
	T     string `json:"t"`
	Kind  string `json:"kind"`
	Side  string `json:"side"`
	State string `json:"state,omitempty"`
}
