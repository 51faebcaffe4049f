package remote

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// TestLoop_RunsPostsInOrder verifies posted funcs run sequentially on the loop.
func TestLoop_RunsPostsInOrder(t *testing.T) {
	l := NewLoop(time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var got []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		l.Post(func() { got = append(got, i) })
	}
	l.Post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("posts never ran")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order: %v", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 posts, got %v", got)
	}
}

// TestLoop_Ticks verifies the tick func runs on the interval.
func TestLoop_Ticks(t *testing.T) {
	var ticks atomic.Int32
	l := NewLoop(5*time.Millisecond, func() { ticks.Add(1) })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected ticks, got %d", ticks.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestLoop_SchedulerPostsToLoop verifies timer callbacks run through the loop and can be stopped.
func TestLoop_SchedulerPostsToLoop(t *testing.T) {
	l := NewLoop(time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	fired := make(chan struct{})
	l.Scheduler().AfterFunc(10*time.Millisecond, func() { close(fired) })
	stopped := l.Scheduler().AfterFunc(time.Hour, func() { t.Errorf("stopped timer fired") })
	if !stopped.Stop() {
		t.Fatalf("expected Stop to report pending timer")
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduled callback never ran")
	}
}

// TestLoop_PostAfterStop verifies Post reports false once Run has returned.
func TestLoop_PostAfterStop(t *testing.T) {
	l := NewLoop(time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	cancel()
	if err := <-errc; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if l.Post(func() {}) {
		t.Fatalf("expected Post to fail after stop")
	}
}
