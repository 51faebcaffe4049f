// Package testutil provides fakes shared by package tests.
package testutil

import (
	"sync"
	"time"

	"github.com/frudas24/owbremote/internal/clock"
)

// FakeScheduler is a manual clock. Timers fire only inside Advance, on the caller's goroutine.
type FakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	s       *FakeScheduler
	at      time.Time
	seq     int
	fn      func()
	delay   time.Duration
	stopped bool
	fired   bool
}

// Ensure FakeScheduler implements the interface.
var _ clock.Scheduler = (*FakeScheduler)(nil)

// NewFakeScheduler returns a scheduler whose clock starts at start.
func NewFakeScheduler(start time.Time) *FakeScheduler {
	return &FakeScheduler{now: start}
}

// Now returns the current fake time.
func (s *FakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// AfterFunc records a timer due d after the current fake time.
func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) clock.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &fakeTimer{s: s, at: s.now.Add(d), seq: s.seq, fn: f, delay: d}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in order.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		next.fired = true
		s.now = next.at
		s.mu.Unlock()
		next.fn()
	}
}

// Pending returns how many timers are armed and not yet fired.
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// PendingDelays returns the requested delays of armed timers in creation order.
func (s *FakeScheduler) PendingDelays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.delay)
		}
	}
	return out
}

// nextDueLocked returns the earliest armed timer due at or before target.
func (s *FakeScheduler) nextDueLocked(target time.Time) *fakeTimer {
	var next *fakeTimer
	for _, t := range s.timers {
		if t.stopped || t.fired || t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

// Stop cancels the timer if it has not fired.
func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
