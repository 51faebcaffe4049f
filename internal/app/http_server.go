package app

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/frudas24/owbremote/internal/mjpeg"
	"github.com/frudas24/owbremote/internal/session"
	"github.com/frudas24/owbremote/internal/web"
	"github.com/frudas24/owbremote/internal/webrtc"
	"github.com/gorilla/mux"
)

type stateResponse struct {
	session.Snapshot
	Link           string       `json:"link"`
	JoystickActive *bool        `json:"joystickActive,omitempty"`
	Camera         *cameraState `json:"camera,omitempty"`
}

type cameraState struct {
	Live   bool          `json:"live"`
	Stream *mjpeg.Stats  `json:"stream,omitempty"`
	RTP    *webrtc.Stats `json:"rtp,omitempty"`
	Viewer bool          `json:"viewer,omitempty"`
}

// Router returns the HTTP handler for the UI, websockets, and API.
func (a *App) Router(staticDir string) http.Handler {
	if staticDir == "" {
		staticDir = filepath.Join("internal", "web", "static")
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/state", a.handleState).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.Handle("/ws/control", a.control)
	if a.signaling != nil {
		r.Handle("/ws/signal", a.signaling)
	}
	if a.stream != nil {
		r.HandleFunc("/mjpeg/camera", a.stream.Handler).Methods(http.MethodGet)
	}
	r.HandleFunc("/favicon.ico", handleFavicon)
	r.PathPrefix("/").Handler(staticFileServer(staticDir))
	return r
}

// handleState returns the session snapshot with link and camera details.
func (a *App) handleState(w http.ResponseWriter, _ *http.Request) {
	resp := stateResponse{
		Snapshot: a.session.Snapshot(),
		Link:     a.link.State().String(),
	}
	if active, ok := a.joystickActive(); ok {
		resp.JoystickActive = &active
	}
	switch {
	case a.stream != nil:
		stats := a.stream.Stats()
		resp.Camera = &cameraState{Live: a.relay.Live(), Stream: &stats}
	case a.publisher != nil:
		stats := a.publisher.Stats()
		resp.Camera = &cameraState{
			Live:   a.runner.Running(),
			RTP:    &stats,
			Viewer: a.signaling.HasViewer(),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleHealth reports that the server is up.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// staticFileServer returns a handler for static assets, preferring disk then embed.
func staticFileServer(staticDir string) http.Handler {
	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			return http.FileServer(http.Dir(staticDir))
		}
	}

	embedded, err := web.StaticFS()
	if err != nil {
		log.Printf("static assets unavailable: %v", err)
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(embedded))
}

// handleFavicon avoids noisy 404s for the default browser request.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
