package webrtc

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

const (
	// maxTimestampJump is one second of the 90kHz video clock.
	maxTimestampJump = 90000
	// defaultTimestampDelta is one frame at 30fps.
	defaultTimestampDelta = 3000
	debugEveryPackets     = 300
)

// rtpWriteParams overrides header fields on outgoing packets when non-zero.
type rtpWriteParams struct {
	payloadType uint8
	ssrc        uint32
}

// rtpRewriter keeps the outgoing stream continuous across ffmpeg restarts.
type rtpRewriter struct {
	mu        sync.Mutex
	started   bool
	seq       uint16
	inTS      uint32
	outTS     uint32
	lastDelta uint32
}

// Apply rewrites the sequence number and timestamp of p in place.
func (r *rtpRewriter) Apply(p *rtp.Packet, params rtpWriteParams) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		r.started = true
		r.seq = p.SequenceNumber
		r.inTS = p.Timestamp
		r.outTS = p.Timestamp
		r.lastDelta = defaultTimestampDelta
	} else {
		r.seq++
		if p.Timestamp != r.inTS {
			delta := p.Timestamp - r.inTS
			if delta > maxTimestampJump {
				delta = r.lastDelta
			} else {
				r.lastDelta = delta
			}
			r.outTS += delta
			r.inTS = p.Timestamp
		}
	}

	p.SequenceNumber = r.seq
	p.Timestamp = r.outTS
	if params.payloadType != 0 {
		p.PayloadType = params.payloadType
	}
	if params.ssrc != 0 {
		p.SSRC = params.ssrc
	}
}

// debugRTP controls whether verbose RTP packet logs are emitted.
var debugRTP atomic.Bool

// SetDebugLogging enables or disables per-packet forwarding logs.
func SetDebugLogging(enabled bool) {
	debugRTP.Store(enabled)
}

// debugRTPEnabled reports whether RTP debug logs are enabled.
func debugRTPEnabled() bool {
	return debugRTP.Load()
}

// packetStats counts forwarded packets across feeds.
type packetStats struct {
	packets atomic.Uint64
	last    atomic.Int64
}

// observe counts one forwarded packet and returns the new total.
func (s *packetStats) observe(now time.Time) uint64 {
	s.last.Store(now.UnixNano())
	return s.packets.Add(1)
}

// lastPacket returns when the last packet was forwarded, or the zero time.
func (s *packetStats) lastPacket() time.Time {
	n := s.last.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

type rtpListener struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// newRTPListener binds a UDP port for RTP ingestion.
func newRTPListener(port int) (*rtpListener, error) {
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &rtpListener{conn: conn}, nil
}

// start begins forwarding RTP packets into the provided track.
func (l *rtpListener) start(track *webrtc.TrackLocalStaticRTP, rw *rtpRewriter, stats *packetStats) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return fmt.Errorf("rtp listener not initialized")
	}
	if l.running {
		return nil
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.running = true
	go l.loop(l.ctx, l.conn, track, rw, stats)
	return nil
}

// close stops forwarding and closes the UDP socket.
func (l *rtpListener) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	l.running = false
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

// loop reads RTP packets and forwards them to the track.
func (l *rtpListener) loop(ctx context.Context, conn *net.UDPConn, track *webrtc.TrackLocalStaticRTP, rw *rtpRewriter, stats *packetStats) {
	buf := make([]byte, 1600)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("webrtc: rtp read: %v", err)
			}
			return
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		rw.Apply(&pkt, rtpWriteParams{})
		if err := track.WriteRTP(&pkt); err != nil && debugRTPEnabled() {
			log.Printf("webrtc: write rtp: %v", err)
		}
		count := stats.observe(time.Now())
		if debugRTPEnabled() && count%debugEveryPackets == 0 {
			log.Printf("webrtc: forwarded %d packets (seq=%d ts=%d)", count, pkt.SequenceNumber, pkt.Timestamp)
		}
	}
}
