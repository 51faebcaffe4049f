// Package session holds the display state reflected back to the operator.
package session

import (
	"sync"
	"time"

	"github.com/frudas24/owbremote/internal/command"
	"github.com/frudas24/owbremote/internal/dispatch"
)

// VideoWebRTC relays the camera over a WebRTC track.
const VideoWebRTC = "webrtc"

// VideoMJPEG relays the camera as an MJPEG stream.
const VideoMJPEG = "mjpeg"

// Snapshot represents a read-only view of the current session state.
type Snapshot struct {
	Connected     bool               `json:"connected"`
	Connects      int                `json:"connects"`
	ConnectedAt   time.Time          `json:"connectedAt,omitempty"`
	Readout       dispatch.Readout   `json:"readout"`
	LightsLeft    command.LightState `json:"lightsLeft"`
	LightsRight   command.LightState `json:"lightsRight"`
	PowerToggles  int                `json:"powerToggles"`
	ControllerURL string             `json:"controllerUrl"`
	CameraURL     string             `json:"cameraUrl,omitempty"`
	VideoMode     string             `json:"videoMode"`
}

// Session holds runtime state for the operator display. It is safe for concurrent use.
type Session struct {
	mu            sync.RWMutex
	connected     bool
	connects      int
	connectedAt   time.Time
	readout       dispatch.Readout
	lights        map[command.Side]command.LightState
	powerToggles  int
	controllerURL string
	cameraURL     string
	videoMode     string
	now           func() time.Time
}

// New returns a disconnected session for the given controller.
func New(controllerURL, cameraURL, videoMode string) *Session {
	s := &Session{
		lights: map[command.Side]command.LightState{
			command.Left:  command.LightsOff,
			command.Right: command.LightsOff,
		},
		controllerURL: controllerURL,
		cameraURL:     cameraURL,
		now:           time.Now,
	}
	s.SetVideoMode(videoMode)
	return s
}

// SetConnected records the link health indicator.
func (s *Session) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if connected && !s.connected {
		s.connects++
		s.connectedAt = s.now()
	}
	if !connected {
		s.connectedAt = time.Time{}
	}
	s.connected = connected
}

// Connected reports the last health value.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SetReadout stores the latest yaw/move readout.
func (s *Session) SetReadout(r dispatch.Readout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readout = r
}

// Readout returns the latest readout.
func (s *Session) Readout() dispatch.Readout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readout
}

// RecordCommand tracks discrete toggles for display.
func (s *Session) RecordCommand(cmd command.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch c := cmd.(type) {
	case command.LightsToggle:
		state := c.State
		if state == "" {
			state = s.lights[c.Side].Toggle()
		}
		s.lights[c.Side] = state
	case command.PowerToggle:
		s.powerToggles++
	}
}

// Lights returns the tracked light state for side.
func (s *Session) Lights(side command.Side) command.LightState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.lights[side]; ok {
		return st
	}
	return command.LightsOff
}

// SetVideoMode sets which camera relay the server runs.
func (s *Session) SetVideoMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch mode {
	case VideoWebRTC:
		s.videoMode = VideoWebRTC
	default:
		s.videoMode = VideoMJPEG
	}
}

// VideoMode returns the active camera relay mode.
func (s *Session) VideoMode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.videoMode == "" {
		return VideoMJPEG
	}
	return s.videoMode
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Connected:     s.connected,
		Connects:      s.connects,
		ConnectedAt:   s.connectedAt,
		Readout:       s.readout,
		LightsLeft:    s.lights[command.Left],
		LightsRight:   s.lights[command.Right],
		PowerToggles:  s.powerToggles,
		ControllerURL: s.controllerURL,
		CameraURL:     s.cameraURL,
		VideoMode:     s.videoMode,
	}
}
