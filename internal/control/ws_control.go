package control

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/frudas24/owbremote/internal/command"
	"github.com/frudas24/owbremote/internal/dispatch"
	"github.com/frudas24/owbremote/internal/pointer"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = time.Second

// ErrBusy is reported when a second browser tries to take control.
var ErrBusy = errors.New("control connection already active")

// Surface receives pointer events. Calls are made from the poster's goroutine.
type Surface interface {
	PointerDown(pointer.Sample)
	PointerMove(pointer.Sample)
	PointerUp(pointer.Sample)
}

// Poster runs fn on the goroutine that owns the surface.
type Poster func(fn func()) bool

// Server handles the browser control websocket.
type Server struct {
	mu        sync.Mutex
	writeMu   sync.Mutex
	upgrader  websocket.Upgrader
	surface   Surface
	post      Poster
	connected func() bool
	conn      *websocket.Conn
	lastRead  *dispatch.Readout
}

// NewServer creates a control websocket server. connected reports link health for the greeting.
func NewServer(surface Surface, post Poster, connected func() bool) *Server {
	if post == nil {
		post = func(fn func()) bool { fn(); return true }
	}
	return &Server{
		surface:   surface,
		post:      post,
		connected: connected,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and processes pointer messages.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if err := s.acceptConn(conn); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	id := uuid.NewString()
	log.Printf("control: browser %s connected from %s", id, r.RemoteAddr)

	active := newPointerSet()
	defer func() {
		s.releaseAll(active)
		s.cleanupConn(conn)
		log.Printf("control: browser %s disconnected", id)
	}()

	if s.connected != nil {
		s.PushStatus(s.connected())
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.handleMessage(msg, active)
	}
}

// acceptConn ensures only one active control connection exists.
func (s *Server) acceptConn(conn *websocket.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return ErrBusy
	}
	s.conn = conn
	s.lastRead = nil
	return nil
}

// cleanupConn clears the active connection when closed.
func (s *Server) cleanupConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// pointerSet tracks the pointers held down on one browser connection.
type pointerSet struct {
	active map[int]pointer.Sample
	order  []int
}

// newPointerSet returns an empty set.
func newPointerSet() *pointerSet {
	return &pointerSet{active: make(map[int]pointer.Sample)}
}

// resolve maps an id-less follow-up onto the most recent pointer still down.
func (p *pointerSet) resolve(sample pointer.Sample) (pointer.Sample, bool) {
	if _, ok := p.active[sample.ID]; ok {
		return sample, true
	}
	if sample.ID != pointer.NoID || len(p.order) == 0 {
		return sample, false
	}
	sample.ID = p.order[len(p.order)-1]
	return sample, true
}

// down records sample as the most recent pointer.
func (p *pointerSet) down(sample pointer.Sample) {
	p.remove(sample.ID)
	p.active[sample.ID] = sample
	p.order = append(p.order, sample.ID)
}

// remove forgets id.
func (p *pointerSet) remove(id int) {
	delete(p.active, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// handleMessage forwards a single pointer message to the surface.
func (s *Server) handleMessage(msg Message, pointers *pointerSet) {
	sample := msg.Sample()
	switch msg.T {
	case "down":
		pointers.down(sample)
		s.post(func() { s.surface.PointerDown(sample) })
	case "move":
		sample, ok := pointers.resolve(sample)
		if !ok {
			return
		}
		pointers.active[sample.ID] = sample
		s.post(func() { s.surface.PointerMove(sample) })
	case "up", "cancel":
		sample, ok := pointers.resolve(sample)
		if !ok {
			return
		}
		pointers.remove(sample.ID)
		s.post(func() { s.surface.PointerUp(sample) })
	}
}

// releaseAll ends every pointer still down so no stick keeps driving after the browser leaves.
func (s *Server) releaseAll(pointers *pointerSet) {
	for _, id := range append([]int(nil), pointers.order...) {
		sample := pointers.active[id]
		sample.At = time.Time{}
		s.post(func() { s.surface.PointerUp(sample) })
		pointers.remove(id)
	}
}

// PushStatus sends the link health indicator to the browser.
func (s *Server) PushStatus(connected bool) {
	s.writeJSON(StatusMessage{T: "status", Connected: connected})
}

// PushReadout sends the yaw/move readout when it changed since the last push.
func (s *Server) PushReadout(r dispatch.Readout) {
	s.mu.Lock()
	if s.conn == nil || (s.lastRead != nil && *s.lastRead == r) {
		s.mu.Unlock()
		return
	}
	s.lastRead = &r
	s.mu.Unlock()
	s.writeJSON(ReadoutMessage{T: "readout", Yaw: r.Yaw, Speed: r.Speed, Dir: r.Direction})
}

// PushToggle reports a discrete command to the browser.
func (s *Server) PushToggle(cmd command.Command) {
	switch c := cmd.(type) {
	case command.PowerToggle:
		s.writeJSON(ToggleMessage{T: "toggle", Kind: string(c.Kind()), Side: string(c.Side)})
	case command.LightsToggle:
		s.writeJSON(ToggleMessage{T: "toggle", Kind: string(c.Kind()), Side: string(c.Side), State: string(c.State)})
	}
}

// writeJSON writes v to the active browser, if any.
func (s *Server) writeJSON(v any) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		log.Printf("control: push failed: %v", err)
	}
}
