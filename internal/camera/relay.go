// Package camera pulls the robot's MJPEG camera and republishes it locally.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/frudas24/owbremote/internal/mjpeg"
)

// DefaultRetry is the pause before reopening a dropped camera stream.
const DefaultRetry = 2 * time.Second

var errStreamEnded = errors.New("camera stream ended")

// Relay copies frames from an upstream MJPEG url into a local stream.
type Relay struct {
	url    string
	client *http.Client
	stream *mjpeg.Stream
	retry  time.Duration
	live   atomic.Bool
}

// NewRelay returns a relay for url. A non-positive retry uses DefaultRetry.
func NewRelay(url string, stream *mjpeg.Stream, retry time.Duration) *Relay {
	if retry <= 0 {
		retry = DefaultRetry
	}
	return &Relay{
		url:    url,
		client: &http.Client{},
		stream: stream,
		retry:  retry,
	}
}

// Live reports whether frames are currently flowing.
func (r *Relay) Live() bool {
	return r.live.Load()
}

// Run pulls the camera until ctx is cancelled, reopening it after failures.
func (r *Relay) Run(ctx context.Context) error {
	for {
		err := r.pull(ctx)
		r.live.Store(false)
		r.stream.Reset()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("camera: %s: %v (retry in %s)", r.url, err, r.retry)

		t := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// pull opens the upstream stream once and publishes frames until it ends.
func (r *Relay) pull(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	first := true
	err = mjpeg.ReadFrames(resp.Body, resp.Header.Get("Content-Type"), func(jpg []byte) {
		if first {
			first = false
			r.live.Store(true)
			log.Printf("camera: streaming from %s", r.url)
		}
		r.stream.Publish(jpg)
	})
	if err != nil {
		return err
	}
	return errStreamEnded
}
