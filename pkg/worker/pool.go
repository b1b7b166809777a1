// Package worker provides the fixed-size goroutine pool that executes bank
// operations, fed by an unbounded FIFO queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

var (
	// ErrPoolClosed is returned by Submit once Stop has been called.
	ErrPoolClosed = errors.New("worker pool is shutting down")

	// ErrShutdownTimeout is returned by Stop when in-flight tasks outlive the grace period.
	ErrShutdownTimeout = errors.New("worker pool did not stop within grace period")

	// ErrPanicRecovered wraps the value of a recovered task panic.
	ErrPanicRecovered = errors.New("worker: panic recovered")
)

// DefaultSize is the number of workers used when New is given a size below one.
const DefaultSize = 4

// Task is a unit of work run by the pool. ctx is cancelled when Stop gives up
// waiting for in-flight tasks.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	size   int
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  Queue[Task]
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OnPanic is called with the wrapped panic after it is logged. Optional.
	OnPanic func(err error)
}

// New starts a pool of size workers.
func New(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = DefaultSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		size:   size,
		logger: logger.With("component", "worker_pool"),
		ctx:    ctx,
		cancel: cancel,
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.loop(i)
	}
	p.logger.Debug("worker pool started", "size", size)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Pending returns the number of submitted tasks not yet picked up.
func (p *Pool) Pending() int { return p.queue.Len() }

// Submit queues task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.queue.Push(task)
	p.cond.Signal()
	return nil
}

func (p *Pool) loop(n int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.queue.Len() == 0 && !p.closed {
			p.cond.Wait()
		}
		task, ok := p.queue.Pop()
		p.mu.Unlock()
		if !ok {
			return
		}
		p.run(n, task)
	}
}

func (p *Pool) run(n int, task Task) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("%w: %v", ErrPanicRecovered, recovered)
			p.logger.Error("task panicked",
				"worker", n,
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
			if p.OnPanic != nil {
				p.OnPanic(err)
			}
		}
	}()
	task(p.ctx)
}

// Stop refuses new tasks and waits up to grace for queued and in-flight tasks
// to finish. When grace expires the task context is cancelled and
// ErrShutdownTimeout is returned; workers exit once their current task returns.
func (p *Pool) Stop(grace time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		p.cancel()
		p.logger.Debug("worker pool stopped")
		return nil
	case <-timer.C:
		p.cancel()
		p.logger.Warn("worker pool grace period expired, cancelling tasks", "grace", grace, "pending", p.queue.Len())
		return ErrShutdownTimeout
	}
}
