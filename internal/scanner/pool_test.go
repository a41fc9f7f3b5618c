package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestWorkerPoolFunctionality tests worker pool basic functionality.
func TestWorkerPoolFunctionality(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()

	var counter int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		if err := pool.SubmitContext(context.Background(), func() {
			atomic.AddInt64(&counter, 1)
			wg.Done()
		}); err != nil {
			wg.Done()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for tasks to complete")
	}

	pool.Stop()

	if counter != 100 {
		t.Errorf("Expected 100 tasks completed, got %d", counter)
	}
	stats := pool.Stats()
	if stats.TasksDone != 100 || stats.Running {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

// TestWorkerPoolSurvivesPanics verifies that a panicking task does not take
// its worker down.
func TestWorkerPoolSurvivesPanics(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()

	var ran atomic.Bool
	if err := pool.SubmitContext(context.Background(), func() { panic("boom") }); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := pool.SubmitContext(context.Background(), func() { ran.Store(true) }); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	pool.Stop()

	if !ran.Load() {
		t.Error("Expected task after panic to run")
	}
	if got := pool.Stats().Panics; got != 1 {
		t.Errorf("Expected 1 recovered panic, got %d", got)
	}
}

func TestWorkerPoolRejectsWhenStopped(t *testing.T) {
	pool := NewWorkerPool(2)
	if err := pool.SubmitContext(context.Background(), func() {}); err == nil {
		t.Error("Expected SubmitContext to fail before Start")
	}

	pool.Start()
	pool.Stop()
	if err := pool.SubmitContext(context.Background(), func() {}); err == nil {
		t.Error("Expected SubmitContext to fail after Stop")
	}
}
