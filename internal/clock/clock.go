// Package clock abstracts delayed callbacks so timers can be driven by tests.
package clock

import "time"

// Timer is a scheduled callback that can be cancelled before it fires.
type Timer interface {
	// Stop cancels the timer and reports whether it was still pending.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Real schedules callbacks with time.AfterFunc on their own goroutine.
type Real struct{}

// AfterFunc implements Scheduler.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(d time.Duration, f func()) Timer

// AfterFunc implements Scheduler.
func (fn SchedulerFunc) AfterFunc(d time.Duration, f func()) Timer {
	return fn(d, f)
}
