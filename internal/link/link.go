// Package link owns the controller socket and reconnects it after drops.
package link

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/frudas24/owbremote/internal/clock"
	"github.com/frudas24/owbremote/internal/command"
	"github.com/google/uuid"
)

// DefaultReconnectDelay is the pause between a close and the next dial.
const DefaultReconnectDelay = 5 * time.Second

var (
	// ErrNotOpen is returned by Send while the link is not open. The command is dropped.
	ErrNotOpen = errors.New("link not open")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("link closed")
)

// State is the lifecycle state of the link.
type State int

const (
	// Closed means no transport is live. A reconnect may be scheduled.
	Closed State = iota
	// Connecting means a transport was created and has not opened yet.
	Connecting
	// Open means sends are transmitted.
	Open
)

// String returns a lower-case state name.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// Events receives the lifecycle of one transport.
// OnClose is delivered exactly once per transport and is the last event.
type Events interface {
	OnOpen()
	OnMessage(data []byte)
	OnError(err error)
	OnClose()
}

// Transport is one underlying connection attempt.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// Dialer creates transports. Dial must return without invoking any Events method.
type Dialer interface {
	Dial(url string, events Events) Transport
}

// HealthSink receives the connected indicator. It is called after the manager lock is
// released, in event order, and may call back into the manager.
type HealthSink interface {
	SetConnected(connected bool)
}

// Config holds the link settings.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
}

// Manager keeps exactly one transport live and reconnects on close.
// It is safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	healthMu  sync.Mutex
	pending   []bool
	cfg       Config
	dialer    Dialer
	sched     clock.Scheduler
	health    HealthSink
	state     State
	attempt   *attempt
	transport Transport
	started   bool
	shutdown  bool
	onOpen    []func()
}

// New validates cfg and returns an idle manager. Call Start to dial.
func New(cfg Config, dialer Dialer, sched clock.Scheduler, health HealthSink) (*Manager, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("link: url is required")
	}
	if dialer == nil {
		return nil, fmt.Errorf("link: dialer is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if sched == nil {
		sched = clock.Real{}
	}
	return &Manager{cfg: cfg, dialer: dialer, sched: sched, health: health, state: Closed}, nil
}

// OnOpen registers fn to run, outside the manager lock, each time a transport opens.
func (m *Manager) OnOpen(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.onOpen = append(m.onOpen, fn)
	m.mu.Unlock()
}

// Start dials the first transport.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.dialLocked()
	m.mu.Unlock()
	m.flushHealth()
	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the link is open.
func (m *Manager) Connected() bool {
	return m.State() == Open
}

// URL returns the controller address.
func (m *Manager) URL() string {
	return m.cfg.URL
}

// Send encodes cmd and transmits it if the link is open. Otherwise it is dropped and logged.
func (m *Manager) Send(cmd command.Command) error {
	data, err := command.Marshal(cmd)
	if err != nil {
		return err
	}

	m.mu.Lock()
	state, tr, shutdown := m.state, m.transport, m.shutdown
	m.mu.Unlock()

	if shutdown {
		return ErrClosed
	}
	if state != Open || tr == nil {
		log.Printf("link: drop %s (%s)", data, state)
		return ErrNotOpen
	}
	if err := tr.Send(data); err != nil {
		log.Printf("link: send %s failed: %v", data, err)
		return err
	}
	if debugEnabled() {
		log.Printf("link: sent %s", data)
	}
	return nil
}

// Close shuts the link down. Pending reconnects become no-ops.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	tr := m.transport
	m.transport = nil
	m.attempt = nil
	m.setStateLocked(Closed)
	m.mu.Unlock()
	m.flushHealth()

	if tr != nil {
		return tr.Close()
	}
	return nil
}

// dialLocked creates a fresh transport for a new attempt.
func (m *Manager) dialLocked() {
	a := &attempt{m: m, id: uuid.New()}
	m.attempt = a
	m.setStateLocked(Connecting)
	log.Printf("link: dialing %s (attempt %s)", m.cfg.URL, a.id)
	m.transport = m.dialer.Dial(m.cfg.URL, a)
}

// reconnect dials again if the link is still closed.
func (m *Manager) reconnect() {
	m.mu.Lock()
	if m.shutdown || m.state != Closed {
		m.mu.Unlock()
		return
	}
	m.dialLocked()
	m.mu.Unlock()
	m.flushHealth()
}

// setStateLocked updates the state and queues the health indicator.
func (m *Manager) setStateLocked(s State) {
	m.state = s
	m.queueHealthLocked(s == Open)
}

// queueHealthLocked records a health value for the next flushHealth. Callers hold m.mu.
func (m *Manager) queueHealthLocked(connected bool) {
	if m.health != nil {
		m.pending = append(m.pending, connected)
	}
}

// flushHealth delivers queued health values in order, outside m.mu, so a slow sink
// never blocks Send.
func (m *Manager) flushHealth() {
	if m.health == nil {
		return
	}
	m.healthMu.Lock()
	defer m.healthMu.Unlock()
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, connected := range pending {
		m.health.SetConnected(connected)
	}
}

// current reports whether a is the live attempt. Callers hold m.mu.
func (m *Manager) current(a *attempt) bool {
	return !m.shutdown && m.attempt == a
}

// attempt binds transport events to the manager and discards them once superseded.
type attempt struct {
	m  *Manager
	id uuid.UUID
}

// OnOpen implements Events.
func (a *attempt) OnOpen() {
	m := a.m
	m.mu.Lock()
	if !m.current(a) || m.state != Connecting {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(Open)
	hooks := append([]func(){}, m.onOpen...)
	m.mu.Unlock()
	m.flushHealth()

	log.Printf("link: open %s (attempt %s)", m.cfg.URL, a.id)
	for _, fn := range hooks {
		fn()
	}
}

// OnMessage implements Events. Inbound payloads are logged and otherwise ignored.
func (a *attempt) OnMessage(data []byte) {
	m := a.m
	m.mu.Lock()
	ok := m.current(a)
	m.mu.Unlock()
	if ok {
		log.Printf("link: inbound %s", data)
	}
}

// OnError implements Events. It flips health but leaves reconnecting to OnClose.
func (a *attempt) OnError(err error) {
	m := a.m
	m.mu.Lock()
	if !m.current(a) {
		m.mu.Unlock()
		return
	}
	m.queueHealthLocked(false)
	m.mu.Unlock()
	m.flushHealth()
	log.Printf("link: error (attempt %s): %v", a.id, err)
}

// OnClose implements Events. It schedules the next attempt after the reconnect delay.
func (a *attempt) OnClose() {
	m := a.m
	m.mu.Lock()
	if !m.current(a) {
		m.mu.Unlock()
		return
	}
	m.attempt = nil
	m.transport = nil
	m.setStateLocked(Closed)
	m.sched.AfterFunc(m.cfg.ReconnectDelay, m.reconnect)
	m.mu.Unlock()
	m.flushHealth()
	log.Printf("link: closed (attempt %s), reconnecting in %s", a.id, m.cfg.ReconnectDelay)
}
