// Package mjpeg reads and re-serves multipart MJPEG camera streams.
package mjpeg

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const boundary = "owbframe"

// Stats describes the relay state of a Stream.
type Stats struct {
	Frames    uint64    `json:"frames"`
	Viewers   int       `json:"viewers"`
	LastFrame time.Time `json:"lastFrame,omitempty"`
}

// Stream fans the latest camera frame out to connected HTTP clients.
type Stream struct {
	mu          sync.RWMutex
	subs        map[chan []byte]struct{}
	last        []byte
	lastAt      time.Time
	frames      uint64
	minInterval time.Duration
	lastPush    time.Time
}

// NewStream creates a stream that broadcasts at most once per minInterval. Zero means every frame.
func NewStream(minInterval time.Duration) *Stream {
	return &Stream{
		subs:        make(map[chan []byte]struct{}),
		minInterval: minInterval,
	}
}

// Publish records a JPEG frame and sends it to all viewers, subject to the interval.
func (s *Stream) Publish(jpg []byte) {
	now := time.Now()
	frame := append([]byte(nil), jpg...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = frame
	s.lastAt = now
	s.frames++
	if s.minInterval > 0 && now.Sub(s.lastPush) < s.minInterval {
		return
	}
	s.lastPush = now
	for ch := range s.subs {
		// Drop the stale frame a slow viewer has not taken yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// Reset forgets the last frame, e.g. after the camera went away.
func (s *Stream) Reset() {
	s.mu.Lock()
	s.last = nil
	s.lastAt = time.Time{}
	s.mu.Unlock()
}

// Stats returns the current counters.
func (s *Stream) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Frames: s.frames, Viewers: len(s.subs), LastFrame: s.lastAt}
}

// Handler serves the MJPEG multipart stream to the HTTP client.
func (s *Stream) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")

	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	// Repeat the last frame so viewers behind proxies keep a live connection.
	keep := time.NewTicker(time.Second)
	defer keep.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case jpg := <-ch:
			if err := writePart(w, jpg); err != nil {
				return
			}
			fl.Flush()
		case <-keep.C:
			s.mu.RLock()
			j := s.last
			s.mu.RUnlock()
			if len(j) > 0 {
				if err := writePart(w, j); err != nil {
					return
				}
				fl.Flush()
			}
		}
	}
}

// subscribe registers a new viewer, primed with the last frame.
func (s *Stream) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if len(s.last) > 0 {
		ch <- s.last
	}
	s.mu.Unlock()
	return ch
}

// unsubscribe removes a viewer.
func (s *Stream) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	delete(s.subs, ch)
	close(ch)
	s.mu.Unlock()
}

// writePart writes a single JPEG frame to the multipart response.
func writePart(w http.ResponseWriter, jpg []byte) error {
	header := "\r\n--" + boundary + "\r\nContent-Type: image/jpeg\r\nContent-Length: " + strconv.Itoa(len(jpg)) + "\r\n\r\n"
	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}
	_, err := w.Write(jpg)
	return err
}
