package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var runs int64
	for i := 0; i < 10; i++ {
		d.Trigger(func() { atomic.AddInt64(&runs, 1) })
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&runs) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Give a late duplicate a chance to fire before asserting.
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt64(&runs); got != 1 {
		t.Fatalf("expected a single trailing run, got %d", got)
	}
}

func TestDebouncer_KeepsLatestFunction(t *testing.T) {
	d := NewDebouncer(time.Hour)
	defer d.Stop()

	var got atomic.Value
	d.Trigger(func() { got.Store("first") })
	d.Trigger(func() { got.Store("second") })
	d.Flush()

	if v := got.Load(); v != "second" {
		t.Fatalf("expected the latest trigger to win, got %v", v)
	}
}

func TestDebouncer_FlushRunsImmediatelyAndOnce(t *testing.T) {
	d := NewDebouncer(time.Hour)
	defer d.Stop()

	var runs int64
	d.Trigger(func() { atomic.AddInt64(&runs, 1) })
	d.Flush()
	d.Flush()

	if got := atomic.LoadInt64(&runs); got != 1 {
		t.Fatalf("expected exactly one run, got %d", got)
	}
}

func TestDebouncer_StopCancelsPendingAndRejectsTriggers(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)

	var runs int64
	d.Trigger(func() { atomic.AddInt64(&runs, 1) })
	d.Stop()
	d.Trigger(func() { atomic.AddInt64(&runs, 1) })

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt64(&runs); got != 0 {
		t.Fatalf("expected no runs after stop, got %d", got)
	}
	d.Flush()
	if got := atomic.LoadInt64(&runs); got != 0 {
		t.Fatalf("expected flush after stop to be a no-op, got %d", got)
	}
}
