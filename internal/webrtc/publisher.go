// Package webrtc publishes the transcoded robot camera to a browser peer.
package webrtc

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// Stats describes the camera feed.
type Stats struct {
	Port       int       `json:"port,omitempty"`
	Forwarding bool      `json:"forwarding"`
	Packets    uint64    `json:"packets"`
	Restarts   int       `json:"restarts"`
	LastPacket time.Time `json:"lastPacket,omitempty"`
}

// Publisher feeds one H264 camera track from local RTP and serves it to a single viewer.
// The outgoing stream stays continuous when the encoder behind the feed is replaced.
type Publisher struct {
	api   *webrtc.API
	track *webrtc.TrackLocalStaticRTP

	mu        sync.Mutex
	peer      *webrtc.PeerConnection
	feed      *rtpListener
	port      int
	feeds     int
	onRestart []func()

	rewriter rtpRewriter
	stats    packetStats
}

// NewPublisher builds the camera track and a pion API with default codecs and interceptors.
func NewPublisher() (*Publisher, error) {
	api, err := newAPI()
	if err != nil {
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"camera",
		"owbremote",
	)
	if err != nil {
		return nil, fmt.Errorf("camera track: %w", err)
	}
	return &Publisher{api: api, track: track}, nil
}

// newAPI registers the default codecs and interceptors.
func newAPI() (*webrtc.API, error) {
	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	interceptors := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(media, interceptors); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	return webrtc.NewAPI(
		webrtc.WithMediaEngine(media),
		webrtc.WithInterceptorRegistry(interceptors),
	), nil
}

// OnRestart registers fn to run after every Forward, so viewers can renegotiate.
func (p *Publisher) OnRestart(fn func()) {
	p.mu.Lock()
	p.onRestart = append(p.onRestart, fn)
	p.mu.Unlock()
}

// Forward moves the camera feed to RTP arriving on port, replacing any earlier feed.
func (p *Publisher) Forward(port int) error {
	listener, err := newRTPListener(port)
	if err != nil {
		return fmt.Errorf("rtp ingest on port %d: %w", port, err)
	}

	p.mu.Lock()
	old := p.feed
	p.feed, p.port = listener, port
	p.feeds++
	feeds := p.feeds
	hooks := append([]func(){}, p.onRestart...)
	p.mu.Unlock()

	if old != nil {
		old.close()
	}
	if err := listener.start(p.track, &p.rewriter, &p.stats); err != nil {
		p.detach(listener)
		return err
	}
	if feeds > 1 {
		log.Printf("webrtc: camera feed restarted on port %d (restart %d)", port, feeds-1)
	}
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// Stop releases the current feed. The track and viewer stay up for the next Forward.
func (p *Publisher) Stop() {
	p.mu.Lock()
	feed := p.feed
	p.feed, p.port = nil, 0
	p.mu.Unlock()
	if feed != nil {
		feed.close()
	}
}

// detach drops l if it is still the current feed.
func (p *Publisher) detach(l *rtpListener) {
	p.mu.Lock()
	if p.feed == l {
		p.feed, p.port = nil, 0
	}
	p.mu.Unlock()
	l.close()
}

// Stats returns a snapshot of the feed.
func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	s := Stats{Port: p.port, Forwarding: p.feed != nil}
	if p.feeds > 1 {
		s.Restarts = p.feeds - 1
	}
	p.mu.Unlock()
	s.Packets = p.stats.packets.Load()
	s.LastPacket = p.stats.lastPacket()
	return s
}

// NewPeer replaces the viewer peer connection with a fresh one carrying the camera track.
func (p *Publisher) NewPeer() (*webrtc.PeerConnection, error) {
	peer, err := p.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}
	sender, err := peer.AddTrack(p.track)
	if err != nil {
		_ = peer.Close()
		return nil, err
	}
	go drainRTCP(sender)

	p.mu.Lock()
	old := p.peer
	p.peer = peer
	p.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return peer, nil
}

// drainRTCP reads sender reports until the peer closes so the interceptors keep running.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// ClosePeer closes the viewer peer connection, if any.
func (p *Publisher) ClosePeer() {
	p.mu.Lock()
	peer := p.peer
	p.peer = nil
	p.mu.Unlock()
	if peer != nil {
		_ = peer.Close()
	}
}

// Close stops the feed and closes the viewer peer.
func (p *Publisher) Close() {
	p.Stop()
	p.ClosePeer()
}
