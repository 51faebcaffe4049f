package ffmpeg

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	defaultFPS         = 20
	defaultBitrateKbps = 1500
	earlyExitWindow    = 700 * time.Millisecond
)

// process is one running ffmpeg with its exit state.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Runner manages the ffmpeg process lifecycle.
type Runner struct {
	mu   sync.Mutex
	proc *process
}

// NewRunner returns a new Runner instance.
func NewRunner() *Runner {
	return &Runner{}
}

// Start replaces any running process with a camera transcode and returns the RTP port.
func (r *Runner) Start(cameraURL string, opts Options) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()

	if opts.FFmpegPath == "" {
		return 0, errors.New("FFmpegPath is required")
	}
	if cameraURL == "" {
		return 0, errors.New("camera url is required")
	}
	if opts.FPS <= 0 {
		opts.FPS = defaultFPS
	}
	if opts.BitrateKbps <= 0 {
		opts.BitrateKbps = defaultBitrateKbps
	}

	port, err := allocatePort()
	if err != nil {
		return 0, err
	}
	args := BuildCameraArgs(cameraURL, opts, port, true)
	log.Printf("ffmpeg: %s %s", opts.FFmpegPath, strings.Join(args, " "))
	proc, err := startWithFallback(opts.FFmpegPath, args, func() []string {
		return BuildCameraArgs(cameraURL, opts, port, false)
	})
	if err != nil {
		return 0, err
	}
	r.proc = proc
	return port, nil
}

// Done is closed when the current process exits. It is nil when nothing runs.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proc == nil {
		return nil
	}
	return r.proc.done
}

// Running reports whether a process was started and has not exited.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proc == nil {
		return false
	}
	select {
	case <-r.proc.done:
		return false
	default:
		return true
	}
}

// ExitErr returns how the last process ended, once Done is closed.
func (r *Runner) ExitErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proc == nil {
		return nil
	}
	select {
	case <-r.proc.done:
		return r.proc.err
	default:
		return nil
	}
}

// Stop terminates any running ffmpeg process.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// stopLocked kills the current process and waits for it.
func (r *Runner) stopLocked() {
	if r.proc == nil {
		return
	}
	if err := r.proc.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Printf("ffmpeg: kill failed: %v", err)
	}
	<-r.proc.done
	r.proc = nil
}

// startCmd launches ffmpeg with the provided args and reaps it in the background.
func startCmd(path string, args []string) (*process, error) {
	cmd := exec.Command(path, args...)
	configureCmd(cmd)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// startWithFallback launches ffmpeg and retries with fallback args if it exits early.
func startWithFallback(path string, args []string, fallback func() []string) (*process, error) {
	p, err := startCmd(path, args)
	if err != nil {
		return nil, err
	}
	select {
	case <-p.done:
	case <-time.After(earlyExitWindow):
		return p, nil
	}

	log.Printf("ffmpeg: exited early (%v), retrying with detected input format", p.err)
	fp, err := startCmd(path, fallback())
	if err != nil {
		if p.err != nil {
			return nil, fmt.Errorf("ffmpeg exited early: %w", p.err)
		}
		return nil, err
	}
	return fp, nil
}

// allocatePort reserves a local UDP port and returns it.
func allocatePort() (int, error) {
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return 0, err
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	if err := conn.Close(); err != nil {
		return 0, err
	}
	return port, nil
}
