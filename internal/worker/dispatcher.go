// Package worker runs side effects outside the request path.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

// TaskCalendarSync pushes a budget period to the calendar.
const TaskCalendarSync = "calendar_sync"

// Task is a fire-and-forget unit of work keyed by budget period.
type Task struct {
	Name   string
	UserID string
	Month  int
	Year   int
	Type   core.BudgetType
	Reason string
}

func (t Task) String() string {
	return fmt.Sprintf("%s(%s %04d-%02d %s)", t.Name, t.UserID, t.Year, t.Month, t.Type)
}

type Handler func(ctx context.Context, task Task) error

// Stats are monotonic counters since the dispatcher was created.
type Stats struct {
	Enqueued int64
	Dropped  int64
	Handled  int64
	Failed   int64
}

// Dispatcher is a bounded in-process queue. Delivery is at most once:
// Enqueue drops a task when the buffer is full or the dispatcher is stopped,
// and a failed task is logged and discarded.
type Dispatcher struct {
	tasks   chan Task
	handler Handler
	workers int
	timeout time.Duration
	logger  *log.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	group   *errgroup.Group

	enqueued, dropped, handled, failed atomic.Int64
}

func NewDispatcher(handler Handler, workers, buffer int, logger *log.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &Dispatcher{
		tasks:   make(chan Task, buffer),
		handler: handler,
		workers: workers,
		timeout: 30 * time.Second,
		logger:  logger,
	}
}

// WithTimeout bounds each handler call.
func (d *Dispatcher) WithTimeout(timeout time.Duration) *Dispatcher {
	d.timeout = timeout
	return d
}

// Start launches the workers. Tasks run on ctx, never on the context of the
// request that enqueued them.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	d.group = &errgroup.Group{}
	for i := 0; i < d.workers; i++ {
		d.group.Go(func() error {
			d.run(ctx)
			return nil
		})
	}
	d.logger.Info("Side-effect dispatcher started", "workers", d.workers, "buffer", cap(d.tasks))
}

// Enqueue hands task off without blocking and reports whether it was accepted.
func (d *Dispatcher) Enqueue(task Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return false
	}
	select {
	case d.tasks <- task:
		d.enqueued.Add(1)
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("Side-effect queue full, dropping task",
			log.FieldTask, task.String(),
			log.FieldUserID, task.UserID)
		return false
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	for task := range d.tasks {
		d.handle(ctx, task)
	}
}

func (d *Dispatcher) handle(ctx context.Context, task Task) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return d.handler(ctx, task)
	}()

	if err != nil {
		d.failed.Add(1)
		d.logger.ErrorContext(ctx, "Side-effect task failed",
			log.FieldTask, task.String(),
			log.FieldUserID, task.UserID,
			log.FieldError, err)
		return
	}
	d.handled.Add(1)
	d.logger.DebugContext(ctx, "Side-effect task done",
		log.FieldTask, task.String(),
		log.FieldDuration, time.Since(start).Milliseconds())
}

// Stop refuses new tasks, lets workers drain the buffer and waits for them
// until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.tasks)
	group := d.group
	d.mu.Unlock()

	if group == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		group.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("Side-effect dispatcher stopped", "handled", d.handled.Load(), "failed", d.failed.Load())
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop dispatcher: %w", ctx.Err())
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued: d.enqueued.Load(),
		Dropped:  d.dropped.Load(),
		Handled:  d.handled.Load(),
		Failed:   d.failed.Load(),
	}
}
