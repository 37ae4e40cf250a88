package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cashflow/internal/core"
)

func task(month int) Task {
	return Task{Name: TaskCalendarSync, UserID: "u1", Month: month, Year: 2024, Type: core.Personal}
}

func TestDispatcher_RunsTasksAndSwallowsFailures(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	handler := func(_ context.Context, tk Task) error {
		mu.Lock()
		seen = append(seen, tk.Month)
		mu.Unlock()
		switch tk.Month {
		case 2:
			return errors.New("calendar down")
		case 3:
			panic("boom")
		}
		return nil
	}

	d := NewDispatcher(handler, 2, 10, nil)
	d.Start(context.Background())

	for m := 1; m <= 4; m++ {
		if !d.Enqueue(task(m)) {
			t.Fatalf("Enqueue(%d) rejected", m)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if len(seen) != 4 {
		t.Errorf("handler saw %d tasks, want 4", len(seen))
	}
	stats := d.Stats()
	if stats.Enqueued != 4 || stats.Handled != 2 || stats.Failed != 2 || stats.Dropped != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	handler := func(ctx context.Context, _ Task) error {
		started.Add(1)
		<-release
		return nil
	}

	d := NewDispatcher(handler, 1, 1, nil)
	d.Start(context.Background())

	// first task occupies the worker
	d.Enqueue(task(1))
	deadline := time.Now().Add(2 * time.Second)
	for started.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if !d.Enqueue(task(2)) {
		t.Fatal("second task should fit the buffer")
	}

	done := make(chan bool, 1)
	go func() { done <- d.Enqueue(task(3)) }()
	select {
	case accepted := <-done:
		if accepted {
			t.Error("Enqueue() on a full queue should drop the task")
		}
	case <-time.After(time.Second):
		t.Fatal("Enqueue() blocked on a full queue")
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := d.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	d := NewDispatcher(func(context.Context, Task) error { return nil }, 1, 4, nil)
	d.Start(context.Background())
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if d.Enqueue(task(1)) {
		t.Error("Enqueue() after Stop() should be rejected")
	}
	if err := d.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestDispatcher_HandlerTimeout(t *testing.T) {
	errCh := make(chan error, 1)
	handler := func(ctx context.Context, _ Task) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	}
	d := NewDispatcher(handler, 1, 1, nil).WithTimeout(20 * time.Millisecond)
	d.Start(context.Background())
	d.Enqueue(task(1))

	select {
	case err := <-errCh:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("handler ctx error = %v, want DeadlineExceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not cancelled")
	}
	d.Stop(context.Background())
}
