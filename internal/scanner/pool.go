package scanner

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"
)

// WorkerPool manages a pool of workers for concurrent task execution.
// A task that panics is recovered and counted; the worker keeps running.
type WorkerPool struct {
	workers    int
	taskQueue  chan func()
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	running    atomic.Bool
	tasksTotal atomic.Uint64
	tasksDone  atomic.Uint64
	panics     atomic.Uint64
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If workers is 0, it defaults to runtime.NumCPU().
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers*100),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the worker pool.
func (p *WorkerPool) Start() {
	if p.running.Swap(true) {
		return // Already running
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker is the main worker loop.
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			var pc panics.Catcher
			pc.Try(task)
			if pc.Recovered() != nil {
				p.panics.Add(1)
			}
			p.tasksDone.Add(1)
		}
	}
}

// SubmitContext blocks until the task is queued, ctx is done or the pool
// stops. It returns ctx.Err() or context.Canceled when the task was not queued.
func (p *WorkerPool) SubmitContext(ctx context.Context, task func()) error {
	if !p.running.Load() {
		return context.Canceled
	}

	select {
	case p.taskQueue <- task:
		p.tasksTotal.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return context.Canceled
	}
}

// Stop drains queued tasks and waits for all workers to finish.
func (p *WorkerPool) Stop() {
	if !p.running.Swap(false) {
		return // Not running
	}

	close(p.taskQueue)
	p.wg.Wait()
	p.cancel()
}

// Stats returns pool statistics.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		Running:    p.running.Load(),
		TasksTotal: p.tasksTotal.Load(),
		TasksDone:  p.tasksDone.Load(),
		Panics:     p.panics.Load(),
		QueueLen:   len(p.taskQueue),
	}
}

// PoolStats contains worker pool statistics.
type PoolStats struct {
	Workers    int
	Running    bool
	TasksTotal uint64
	TasksDone  uint64
	Panics     uint64
	QueueLen   int
}
