package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleFiresOnce(t *testing.T) {
	s := New(nil)
	t.Cleanup(s.Stop)

	fired := make(chan struct{})
	s.Schedule("msg-1", time.Now().Add(10*time.Millisecond), func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	// A fired timer removes itself.
	if s.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", s.Pending())
	}
	if s.Cancel("msg-1") {
		t.Fatal("fired timer should not be cancelable")
	}
}

func TestScheduleReplacesPending(t *testing.T) {
	s := New(nil)
	t.Cleanup(s.Stop)

	var first, second atomic.Int32
	s.Schedule("msg-1", time.Now().Add(time.Hour), func() { first.Add(1) })
	done := make(chan struct{})
	s.Schedule("msg-1", time.Now().Add(10*time.Millisecond), func() {
		second.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement timer never fired")
	}

	if first.Load() != 0 {
		t.Fatal("replaced timer must not fire")
	}
	if second.Load() != 1 {
		t.Fatalf("expected one firing, got %d", second.Load())
	}
}

func TestCancelDiscardsPending(t *testing.T) {
	s := New(nil)
	t.Cleanup(s.Stop)

	var fired atomic.Int32
	s.Schedule("msg-1", time.Now().Add(20*time.Millisecond), func() { fired.Add(1) })

	if !s.Cancel("msg-1") {
		t.Fatal("expected pending timer to be canceled")
	}
	if s.Cancel("msg-1") {
		t.Fatal("double cancel should report nothing pending")
	}

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("canceled timer must not fire")
	}
}

func TestPastDeadlineFiresImmediately(t *testing.T) {
	s := New(nil)
	t.Cleanup(s.Stop)

	fired := make(chan struct{})
	s.Schedule("msg-1", time.Now().Add(-time.Minute), func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("past-deadline task never ran")
	}
}
