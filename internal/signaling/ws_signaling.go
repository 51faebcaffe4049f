package signaling

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

// ErrViewerActive is the close reason sent to a rejected second viewer.
var ErrViewerActive = errors.New("viewer already connected")

// ViewerPolicy controls how additional viewers are handled.
type ViewerPolicy int

const (
	// ViewerReplace closes the active viewer when a new one arrives.
	ViewerReplace ViewerPolicy = iota
	// ViewerReject refuses new viewers while one is active.
	ViewerReject
)

// PeerFactory creates the server side peer connection for a viewer.
type PeerFactory interface {
	NewPeer() (*webrtc.PeerConnection, error)
}

// viewer is one signaling websocket and its peer.
type viewer struct {
	id   uuid.UUID
	conn *websocket.Conn
	peer *webrtc.PeerConnection
}

// Server handles WebRTC signaling over WebSocket.
type Server struct {
	mu       sync.Mutex
	writeMu  sync.Mutex
	upgrader websocket.Upgrader
	peers    PeerFactory
	policy   ViewerPolicy
	active   *viewer
}

// NewServer creates a signaling server with the chosen viewer policy.
func NewServer(peers PeerFactory, policy ViewerPolicy) *Server {
	return &Server{
		peers:  peers,
		policy: policy,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the signaling loop for one viewer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	v := &viewer{id: uuid.New(), conn: conn}
	if err := s.accept(v); err != nil {
		log.Printf("signaling: rejecting viewer %s: %v", v.id, err)
		reject(conn, err.Error())
		return
	}
	defer s.cleanup(v)
	log.Printf("signaling: viewer %s connected from %s", v.id, r.RemoteAddr)

	peer, err := s.peers.NewPeer()
	if err != nil {
		log.Printf("signaling: viewer %s: new peer: %v", v.id, err)
		return
	}
	if err := s.attachPeer(v, peer); err != nil {
		_ = peer.Close()
		return
	}

	peer.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		candidate := c.ToJSON()
		_ = s.sendTo(v, Message{T: TypeICE, Candidate: &candidate})
	})
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("signaling: viewer %s peer %s", v.id, state)
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if err := s.handleMessage(v, msg); err != nil {
			log.Printf("signaling: viewer %s: %v", v.id, err)
			return
		}
	}
}

// NotifyRestart asks the active viewer to renegotiate, e.g. after the encoder restarted.
func (s *Server) NotifyRestart() {
	s.mu.Lock()
	v := s.active
	s.mu.Unlock()
	if v == nil {
		return
	}
	_ = s.sendTo(v, Message{T: TypeRestart})
}

// HasViewer reports whether a viewer is connected.
func (s *Server) HasViewer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// accept registers v as the active viewer or returns an error.
func (s *Server) accept(v *viewer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		if s.policy == ViewerReject {
			return ErrViewerActive
		}
		log.Printf("signaling: viewer %s replaced by %s", s.active.id, v.id)
		_ = s.active.conn.Close()
	}
	s.active = v
	return nil
}

// reject sends a policy violation close and closes the socket.
func reject(conn *websocket.Conn, reason string) {
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	_ = conn.Close()
}

// attachPeer stores the peer connection when v is still the active viewer.
func (s *Server) attachPeer(v *viewer, peer *webrtc.PeerConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != v {
		return fmt.Errorf("viewer %s no longer active", v.id)
	}
	v.peer = peer
	return nil
}

// cleanup clears state if v is still the active viewer.
func (s *Server) cleanup(v *viewer) {
	s.mu.Lock()
	if s.active == v {
		s.active = nil
		if v.peer != nil {
			_ = v.peer.Close()
		}
	}
	s.mu.Unlock()
	_ = v.conn.Close()
	log.Printf("signaling: viewer %s disconnected", v.id)
}

// handleMessage dispatches signaling messages.
func (s *Server) handleMessage(v *viewer, msg Message) error {
	switch msg.T {
	case TypeOffer:
		return s.handleOffer(v, msg.SDP)
	case TypeICE:
		if msg.Candidate == nil {
			return nil
		}
		return v.peer.AddICECandidate(*msg.Candidate)
	default:
		return nil
	}
}

// handleOffer applies an SDP offer and replies with a complete answer.
func (s *Server) handleOffer(v *viewer, sdp string) error {
	if sdp == "" {
		return fmt.Errorf("empty offer")
	}
	peer := v.peer
	if err := peer.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	}); err != nil {
		return err
	}
	answer, err := peer.CreateAnswer(nil)
	if err != nil {
		return err
	}
	gatherComplete := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(answer); err != nil {
		return err
	}
	<-gatherComplete
	local := peer.LocalDescription()
	if local == nil {
		return fmt.Errorf("missing local description")
	}
	return s.sendTo(v, Message{T: TypeAnswer, SDP: local.SDP})
}

// sendTo writes a message when v is still the active viewer.
func (s *Server) sendTo(v *viewer, msg Message) error {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active != v {
		return fmt.Errorf("viewer %s not active", v.id)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = v.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return v.conn.WriteJSON(msg)
}
