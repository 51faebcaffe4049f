package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 2 * time.Second
	// pingPeriod is how often an idle link is pinged.
	pingPeriod = 10 * time.Second
	// dialTimeout bounds the websocket handshake.
	dialTimeout = 5 * time.Second
)

var errNotConnected = errors.New("websocket not connected")

// WSDialer dials the controller over a websocket.
type WSDialer struct {
	Dialer *websocket.Dialer
}

// Dial starts the handshake in the background and returns immediately.
func (d WSDialer) Dial(url string, events Events) Transport {
	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: dialTimeout}
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &wsTransport{cancel: cancel}
	go t.run(ctx, dialer, url, events)
	return t
}

// wsTransport is one websocket connection attempt.
type wsTransport struct {
	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	closed  bool
	cancel  context.CancelFunc
}

// run dials, reads until the connection ends, then reports OnClose.
func (t *wsTransport) run(ctx context.Context, dialer *websocket.Dialer, url string, events Events) {
	defer events.OnClose()
	defer t.cancel()

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if !t.isClosed() {
			events.OnError(err)
		}
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	events.OnOpen()

	stop := make(chan struct{})
	defer close(stop)
	go t.keepalive(stop)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !t.isClosed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				events.OnError(err)
			}
			_ = conn.Close()
			return
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			events.OnMessage(data)
		}
	}
}

// keepalive pings the peer until stop closes or a ping fails.
func (t *wsTransport) keepalive(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn := t.current()
			if conn == nil {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// Send writes data as one text frame.
func (t *wsTransport) Send(data []byte) error {
	conn := t.current()
	if conn == nil {
		return errNotConnected
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close aborts the dial or closes the connection.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	t.cancel()
	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	t.writeMu.Unlock()
	return conn.Close()
}

// current returns the open connection, or nil.
func (t *wsTransport) current() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	return t.conn
}

// isClosed reports whether Close was called.
func (t *wsTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
