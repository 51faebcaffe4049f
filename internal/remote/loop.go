package remote

import (
	"context"
	"time"

	"github.com/frudas24/owbremote/internal/clock"
)

// DefaultSendInterval is the dispatch cadence (about 30 Hz).
const DefaultSendInterval = 33 * time.Millisecond

// Loop serializes posted events, timer callbacks and the periodic tick on one goroutine.
type Loop struct {
	interval time.Duration
	tick     func()
	posts    chan func()
	done     chan struct{}
}

// NewLoop returns a loop that calls tick every interval once running.
func NewLoop(interval time.Duration, tick func()) *Loop {
	if interval <= 0 {
		interval = DefaultSendInterval
	}
	if tick == nil {
		tick = func() {}
	}
	return &Loop{
		interval: interval,
		tick:     tick,
		posts:    make(chan func(), 256),
		done:     make(chan struct{}),
	}
}

// Post queues fn to run on the loop. It reports false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.posts <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Scheduler returns a scheduler whose callbacks run on the loop.
func (l *Loop) Scheduler() clock.Scheduler {
	return clock.SchedulerFunc(func(d time.Duration, f func()) clock.Timer {
		return time.AfterFunc(d, func() { l.Post(f) })
	})
}

// Run processes events until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.posts:
			fn()
		case <-ticker.C:
			l.tick()
		}
	}
}
