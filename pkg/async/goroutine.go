package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/observability"
)

// SafeGo executes a best-effort side effect in its own goroutine with:
// - Detachment from the parent's cancellation (values such as request ID are kept)
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// The caller never observes the outcome. Use it for audit writes, realtime
// emits and automation runs that must not affect the primary request.
//
// Example:
//
//	SafeGo(r.Context(), 5*time.Second, "audit board.dnd.move", func(ctx context.Context) error {
//	    return auditLogger.Log(ctx, event)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	defaultRunner.Go(parentCtx, timeout, taskName, fn)
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Runner tracks fire-and-forget tasks so shutdown and tests can wait for them
type Runner struct {
	wg sync.WaitGroup
}

var defaultRunner = &Runner{}

// NewRunner creates a task runner
func NewRunner() *Runner {
	return &Runner{}
}

// Go runs fn in a goroutine with its own error boundary
func (r *Runner) Go(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	detached := context.WithoutCancel(parentCtx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()

		logger := observability.FromContext(ctx).WithField("task", taskName)

		defer func() {
			if rec := recover(); rec != nil {
				logger.WithFields(map[string]interface{}{
					"panic": fmt.Sprint(rec),
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).Warn("background task failed")
		}
	}()
}

// Wait blocks until all tasks started by the runner finish or timeout elapses.
// It reports whether every task finished.
func (r *Runner) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Drain waits for tasks started through SafeGo
func Drain(timeout time.Duration) bool {
	return defaultRunner.Wait(timeout)
}

// WorkerPool manages a pool of workers that process tasks from a channel.
// Provides graceful shutdown and error collection.
type WorkerPool struct {
	workers      int
	taskName     string
	timeout      time.Duration
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	errCh        chan error
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	mu           sync.RWMutex
	closed       bool
}

// NewWorkerPool creates a new worker pool.
//
// Example:
//
//	pool := NewWorkerPool(ctx, 4, "webhook delivery", 15*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//	    return deliver(ctx, subscription, event)
//	})
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		workCh:   make(chan func(context.Context) error, workers*16),
		doneCh:   make(chan struct{}),
		errCh:    make(chan error, workers*10),
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit adds a task to the worker pool.
// Returns error if pool is shut down.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("worker pool shut down")
	}

	select {
	case p.workCh <- fn:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool shut down")
	}
}

// Shutdown stops accepting work and waits up to timeout for queued tasks to finish.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.workCh)
		p.mu.Unlock()

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool shutdown timed out after %v", timeout)
		}
	})

	return shutdownErr
}

// Errors returns a channel that receives worker errors.
// Non-blocking, use select to check for errors.
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

func (p *WorkerPool) worker(id int) {
	logger := observability.Default().WithFields(map[string]interface{}{
		"pool":   p.taskName,
		"worker": id,
	})

	for {
		select {
		case <-p.ctx.Done():
			return

		case fn, ok := <-p.workCh:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(p.ctx, p.timeout)

			func() {
				defer cancel()
				defer func() {
					if r := recover(); r != nil {
						logger.WithField("stack", string(debug.Stack())).Errorf("panic in worker: %v", r)
						p.reportError(fmt.Errorf("panic: %v", r), logger)
					}
				}()

				if err := fn(ctx); err != nil {
					p.reportError(err, logger)
				}
			}()
		}
	}
}

func (p *WorkerPool) reportError(err error, logger *observability.Logger) {
	select {
	case p.errCh <- err:
	default:
		logger.WithError(err).Warn("error channel full, dropping error")
	}
}
