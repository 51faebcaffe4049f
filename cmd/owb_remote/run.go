package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/frudas24/owbremote/internal/app"
	"github.com/frudas24/owbremote/internal/config"
	"github.com/frudas24/owbremote/internal/link"
	"github.com/frudas24/owbremote/internal/session"
	"github.com/frudas24/owbremote/internal/webrtc"
)

// run wires the application and blocks until shutdown.
func run(debug bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	link.SetDebugLogging(debug)
	webrtc.SetDebugLogging(debug)
	if debug {
		log.Printf("debug: enabled")
	}
	logStartup(cfg)

	appInstance, err := app.New(cfg, link.WSDialer{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := appInstance.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := appInstance.Stop(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           appInstance.Router(""),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// logFatal prints and exits for startup failures.
func logFatal(err error) {
	log.Printf("fatal: %v", err)
	os.Exit(1)
}

// logStartup prints startup checks and connection info.
func logStartup(cfg config.Config) {
	log.Printf("owb remote starting")
	logEnvStatus(cfg)
	log.Printf("controller: %s (reconnect %dms)", cfg.ControllerURL, cfg.ReconnectDelayMs)
	log.Printf("rest policy: %s, send interval %dms", cfg.RestPolicy, cfg.SendIntervalMs)
	switch {
	case cfg.CameraURL == "":
		log.Printf("camera: none")
	case cfg.VideoMode == session.VideoWebRTC:
		log.Printf("camera: %s via webrtc", cfg.CameraURL)
		logFFmpegStatus(cfg.FFmpegPath)
	default:
		log.Printf("camera: %s via mjpeg relay", cfg.CameraURL)
	}
	logListenStatus(cfg.ListenAddr)
}

// logEnvStatus reports which optional config files were found.
func logEnvStatus(cfg config.Config) {
	for _, name := range []string{config.FileName, ".env"} {
		path := filepath.Join(cfg.DataDir, name)
		if fileExists(path) {
			log.Printf("config check: ok (%s)", path)
		} else {
			log.Printf("config check: missing (%s)", path)
		}
	}
}

// logFFmpegStatus reports whether the ffmpeg binary is discoverable.
func logFFmpegStatus(path string) {
	if filepath.IsAbs(path) {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			log.Printf("ffmpeg check: missing (%v)", err)
		case info.IsDir():
			log.Printf("ffmpeg check: missing (path is a directory)")
		default:
			log.Printf("ffmpeg check: ok (%s)", path)
		}
		return
	}
	found, err := exec.LookPath(path)
	switch {
	case err == nil:
		log.Printf("ffmpeg check: ok (%s)", found)
	case errors.Is(err, exec.ErrDot):
		log.Printf("ffmpeg check: missing (found relative to current dir; use absolute path)")
	default:
		log.Printf("ffmpeg check: missing (%v)", err)
	}
}

// logListenStatus reports the listen address and a local URL helper.
func logListenStatus(addr string) {
	log.Printf("listen addr: %s", addr)
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	log.Printf("local url: http://%s", net.JoinHostPort(host, port))
}

// fileExists reports whether a path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
