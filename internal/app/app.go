// Package app wires the touch surface, the robot link, and the camera pipeline together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/frudas24/owbremote/internal/camera"
	"github.com/frudas24/owbremote/internal/clock"
	"github.com/frudas24/owbremote/internal/command"
	"github.com/frudas24/owbremote/internal/config"
	"github.com/frudas24/owbremote/internal/control"
	"github.com/frudas24/owbremote/internal/dispatch"
	"github.com/frudas24/owbremote/internal/ffmpeg"
	"github.com/frudas24/owbremote/internal/gesture"
	"github.com/frudas24/owbremote/internal/link"
	"github.com/frudas24/owbremote/internal/mjpeg"
	"github.com/frudas24/owbremote/internal/remote"
	"github.com/frudas24/owbremote/internal/session"
	"github.com/frudas24/owbremote/internal/signaling"
	"github.com/frudas24/owbremote/internal/webrtc"
)

const stateQueryTimeout = 100 * time.Millisecond

// healthFunc adapts a function to link.HealthSink.
type healthFunc func(bool)

// SetConnected implements link.HealthSink.
func (f healthFunc) SetConnected(connected bool) { f(connected) }

// readoutFunc adapts a function to dispatch.ReadoutSink.
type readoutFunc func(dispatch.Readout)

// SetReadout implements dispatch.ReadoutSink.
func (f readoutFunc) SetReadout(r dispatch.Readout) { f(r) }

// App coordinates the HTTP surface, the controller link, and the media pipeline.
type App struct {
	cfg     config.Config
	session *session.Session
	loop    *remote.Loop
	surface *remote.Surface
	link    *link.Manager
	control *control.Server

	stream *mjpeg.Stream
	relay  *camera.Relay

	runner    *ffmpeg.Runner
	publisher *webrtc.Publisher
	signaling *signaling.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an application for cfg. dialer opens controller transports.
func New(cfg config.Config, dialer link.Dialer) (*App, error) {
	if dialer == nil {
		return nil, errors.New("dialer is required")
	}
	policy, err := dispatch.ParseRestPolicy(cfg.RestPolicy)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		session: session.New(cfg.ControllerURL, cfg.CameraURL, cfg.VideoMode),
	}

	a.loop = remote.NewLoop(time.Duration(cfg.SendIntervalMs)*time.Millisecond, func() {
		a.surface.Tick()
	})

	a.link, err = link.New(link.Config{
		URL:            cfg.ControllerURL,
		ReconnectDelay: time.Duration(cfg.ReconnectDelayMs) * time.Millisecond,
	}, dialer, clock.Real{}, healthFunc(a.setConnected))
	if err != nil {
		return nil, err
	}

	a.surface = remote.NewSurface(remote.Options{
		ReferenceRadius:     cfg.ReferenceRadius,
		ActivationThreshold: cfg.ActivationThreshold,
		Gesture: gesture.Config{
			MoveThreshold: cfg.MoveThreshold,
			LongPress:     time.Duration(cfg.LongPressMs) * time.Millisecond,
			DoubleTap:     time.Duration(cfg.DoubleTapMs) * time.Millisecond,
		},
		RestPolicy: policy,
	}, a.link, a.loop.Scheduler())
	a.surface.SetReadoutSink(readoutFunc(a.publishReadout))
	a.surface.OnDiscrete(a.publishToggle)

	a.control = control.NewServer(a.surface, a.loop.Post, a.link.Connected)
	a.link.OnOpen(func() {
		a.loop.Post(a.surface.Forget)
	})

	if err := a.setupVideo(); err != nil {
		return nil, err
	}
	return a, nil
}

// setupVideo builds the camera pipeline selected by the video mode.
func (a *App) setupVideo() error {
	if a.cfg.CameraURL == "" {
		return nil
	}
	switch a.session.VideoMode() {
	case session.VideoWebRTC:
		publisher, err := webrtc.NewPublisher()
		if err != nil {
			return fmt.Errorf("webrtc publisher: %w", err)
		}
		a.publisher = publisher
		a.runner = ffmpeg.NewRunner()
		a.signaling = signaling.NewServer(publisher, signaling.ViewerReplace)
		publisher.OnRestart(a.signaling.NotifyRestart)
	default:
		a.stream = mjpeg.NewStream(time.Duration(a.cfg.MJPEGIntervalMs) * time.Millisecond)
		a.relay = camera.NewRelay(a.cfg.CameraURL, a.stream, a.retryDelay())
	}
	return nil
}

// Start runs the event loop, dials the controller, and starts the camera pipeline.
func (a *App) Start(ctx context.Context) error {
	if a.cancel != nil {
		return errors.New("app already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.goRun(func() {
		if err := a.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("loop: %v", err)
		}
	})
	if err := a.link.Start(); err != nil {
		cancel()
		a.wg.Wait()
		return err
	}

	switch {
	case a.relay != nil:
		a.goRun(func() { _ = a.relay.Run(ctx) })
	case a.runner != nil:
		a.goRun(func() { a.runWebRTC(ctx) })
	default:
		log.Printf("camera: disabled (no CAMERA_URL)")
	}
	return nil
}

// Stop closes the link and waits for background work to end.
func (a *App) Stop() error {
	err := a.link.Close()
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.runner != nil {
		a.runner.Stop()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	return err
}

// goRun starts fn tracked by the wait group.
func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// runWebRTC keeps ffmpeg and RTP forwarding alive, restarting after encoder exits.
func (a *App) runWebRTC(ctx context.Context) {
	opts := ffmpeg.Options{
		FFmpegPath:  a.cfg.FFmpegPath,
		FPS:         a.cfg.FPS,
		BitrateKbps: a.cfg.BitrateKbps,
	}
	for {
		if err := a.restartPipeline(opts); err != nil {
			log.Printf("pipeline: %v (retry in %s)", err, a.retryDelay())
		} else {
			select {
			case <-ctx.Done():
				return
			case <-a.runner.Done():
				log.Printf("pipeline: ffmpeg exited: %v", a.runner.ExitErr())
			}
		}
		a.publisher.Stop()

		t := time.NewTimer(a.retryDelay())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// restartPipeline starts ffmpeg and moves the camera feed to its RTP port.
func (a *App) restartPipeline(opts ffmpeg.Options) error {
	port, err := a.runner.Start(a.cfg.CameraURL, opts)
	if err != nil {
		return err
	}
	if err := a.publisher.Forward(port); err != nil {
		a.runner.Stop()
		return err
	}
	log.Printf("pipeline: forwarding camera on rtp port %d", port)
	return nil
}

// retryDelay is the pause before reopening the camera.
func (a *App) retryDelay() time.Duration {
	return time.Duration(a.cfg.ReconnectDelayMs) * time.Millisecond
}

// setConnected mirrors link health into the session and the browser.
func (a *App) setConnected(connected bool) {
	a.session.SetConnected(connected)
	if a.control != nil {
		a.control.PushStatus(connected)
	}
}

// publishReadout mirrors the per-tick readout. Runs on the loop.
func (a *App) publishReadout(r dispatch.Readout) {
	a.session.SetReadout(r)
	a.control.PushReadout(r)
}

// publishToggle records and reports a discrete command. Runs on the loop.
func (a *App) publishToggle(cmd command.Command) {
	a.session.RecordCommand(cmd)
	a.control.PushToggle(cmd)
}

// joystickActive asks the loop whether a stick is driving. ok is false when the loop is busy or stopped.
func (a *App) joystickActive() (active, ok bool) {
	result := make(chan bool, 1)
	if !a.loop.Post(func() { result <- a.surface.JoystickActive() }) {
		return false, false
	}
	select {
	case active = <-result:
		return active, true
	case <-time.After(stateQueryTimeout):
		return false, false
	}
}
