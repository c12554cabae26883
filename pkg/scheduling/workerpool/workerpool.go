package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	gfcontext "github.com/vnykmshr/rateguard/pkg/common/context"
	gferrors "github.com/vnykmshr/rateguard/pkg/common/errors"
)

// Submit adds a task to the pool for execution.
// The task will be executed with context.Background().
// Use SubmitWithContext to provide a custom context.
func (p *workerPool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext adds a task to the pool for execution with the given context.
// The context is passed to the task's Execute method, enabling timeout and
// cancellation propagation. If the pool has a TaskTimeout configured, the
// effective timeout will be the minimum of the context deadline and TaskTimeout.
func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Check if context is already canceled before attempting to queue
	select {
	case <-ctx.Done():
		return fmt.Errorf("cannot submit task: context canceled: %w", ctx.Err())
	default:
	}

	// The read lock is held across the send so Shutdown cannot close the
	// queue underneath a blocked submitter.
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.isShutdown {
		return fmt.Errorf("cannot submit task: %w", gferrors.ErrClosed)
	}

	select {
	case p.taskQueue <- taskWithContext{task: task, ctx: ctx}:
	case <-ctx.Done():
		return fmt.Errorf("cannot submit task: context canceled: %w", ctx.Err())
	}

	p.countSubmitted()
	return nil
}

// Results returns a channel of task results.
func (p *workerPool) Results() <-chan Result {
	return p.resultQueue
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.isShutdown = true
		close(p.taskQueue)
		p.mu.Unlock()

		go func() {
			p.workerWg.Wait()
			close(p.resultQueue)
			close(p.done)
		}()
	})

	return p.done
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *workerPool) QueueSize() int {
	return len(p.taskQueue)
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.activeWorkers
}

// TotalSubmitted returns the total number of tasks submitted to the pool.
func (p *workerPool) TotalSubmitted() int64 {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.totalSubmitted
}

// TotalCompleted returns the total number of tasks completed by the pool.
func (p *workerPool) TotalCompleted() int64 {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.totalCompleted
}

func (p *workerPool) countSubmitted() {
	p.statsMu.Lock()
	p.totalSubmitted++
	p.statsMu.Unlock()

	if m := p.config.Metrics; m != nil {
		m.WorkerPoolQueued.WithLabelValues(p.config.Name).Set(float64(len(p.taskQueue)))
	}
}

// run is the main loop for a worker.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	for twc := range w.pool.taskQueue {
		w.executeTask(twc)
	}
}

// executeTask executes a single task with the provided context.
func (w *worker) executeTask(twc taskWithContext) {
	p := w.pool
	p.setActive(1)
	start := time.Now()
	var err error

	// Handle panics during task execution
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v\nStack trace:\n%s", r, debug.Stack())
		}

		result := Result{
			Task:     twc.task,
			Error:    err,
			Duration: time.Since(start),
			WorkerID: w.id,
		}
		p.setActive(-1)
		p.recordResult(result)

		if p.config.OnTaskComplete != nil {
			p.config.OnTaskComplete(w.id, result)
		}
		w.sendResult(result)
	}()

	ctx, cancel := gfcontext.WithOptionalTimeout(twc.ctx, p.config.TaskTimeout)
	defer cancel()

	err = twc.task.Execute(ctx)
}

// sendResult offers a result on the result queue, dropping it if nobody
// reads within ResultTimeout.
func (w *worker) sendResult(result Result) {
	timer := time.NewTimer(w.pool.config.ResultTimeout)
	defer timer.Stop()

	select {
	case w.pool.resultQueue <- result:
	case <-timer.C:
	}
}

func (p *workerPool) setActive(delta int) {
	p.statsMu.Lock()
	p.activeWorkers += delta
	active := p.activeWorkers
	p.statsMu.Unlock()

	if m := p.config.Metrics; m != nil {
		m.WorkerPoolActive.WithLabelValues(p.config.Name).Set(float64(active))
		m.WorkerPoolQueued.WithLabelValues(p.config.Name).Set(float64(len(p.taskQueue)))
	}
}

func (p *workerPool) recordResult(result Result) {
	p.statsMu.Lock()
	p.totalCompleted++
	p.statsMu.Unlock()

	m := p.config.Metrics
	if m == nil {
		return
	}
	m.TaskExecutionTime.WithLabelValues(p.config.Name).Observe(result.Duration.Seconds())
	if result.Error != nil {
		m.TasksFailed.WithLabelValues(p.config.Name).Inc()
	} else {
		m.TasksCompleted.WithLabelValues(p.config.Name).Inc()
	}
}
