package link

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frudas24/owbremote/internal/command"
	"github.com/gorilla/websocket"
)

// controllerStub accepts one websocket at a time and records text frames.
type controllerStub struct {
	upgrader websocket.Upgrader
	frames   chan string
	mu       sync.Mutex
	conns    []*websocket.Conn
}

// ServeHTTP upgrades and reads until the peer goes away.
func (c *controllerStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.conns = append(c.conns, conn)
	c.mu.Unlock()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.frames <- string(data)
	}
}

// dropAll closes every accepted connection from the server side.
func (c *controllerStub) dropAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		_ = conn.Close()
	}
	c.conns = nil
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestWSDialer_SendAndReconnect verifies frames reach the controller and a server drop redials.
func TestWSDialer_SendAndReconnect(t *testing.T) {
	stub := &controllerStub{frames: make(chan string, 8)}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	health := &healthRecorder{}
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	m, err := New(Config{URL: url, ReconnectDelay: 50 * time.Millisecond}, WSDialer{}, nil, health)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close()
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "open", m.Connected)

	if err := m.Send(command.Translate{Speed: 0.25, Direction: 270}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	select {
	case got := <-stub.frames:
		if got != `{"T":{"d":270,"s":0.25}}` {
			t.Fatalf("unexpected frame %s", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("frame never arrived")
	}

	stub.dropAll()
	waitFor(t, "disconnect", func() bool { return !health.current() })
	waitFor(t, "reconnect", m.Connected)
}

// TestWSDialer_RefusedEndsInClose verifies a failed dial reports error then close.
func TestWSDialer_RefusedEndsInClose(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	ev := &eventLog{closed: make(chan struct{})}
	tr := WSDialer{}.Dial(url, ev)
	select {
	case <-ev.closed:
	case <-time.After(3 * time.Second):
		t.Fatalf("close never reported")
	}
	if ev.errors() == 0 {
		t.Fatalf("expected an error before close")
	}
	if err := tr.Send([]byte("x")); err == nil {
		t.Fatalf("expected send on failed transport to fail")
	}
}

// eventLog records transport events.
type eventLog struct {
	mu     sync.Mutex
	errs   int
	closed chan struct{}
}

// OnOpen implements Events.
func (e *eventLog) OnOpen() {}

// OnMessage implements Events.
func (e *eventLog) OnMessage([]byte) {}

// OnError implements Events.
func (e *eventLog) OnError(error) {
	e.mu.Lock()
	e.errs++
	e.mu.Unlock()
}

// OnClose implements Events.
func (e *eventLog) OnClose() { close(e.closed) }

// errors returns how many errors were reported.
func (e *eventLog) errors() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errs
}
