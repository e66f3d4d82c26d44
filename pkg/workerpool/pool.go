// Package workerpool bounds how many expensive operations run at once.
//
// The edge proxy routes every headless-browser request through a Pool sized
// by BROWSER_CONCURRENCY. When the workers and the small backlog are all
// taken, Run fails fast with ErrPoolFull and the handler answers 503.
//
//	pool := workerpool.New(4)
//	defer pool.Shutdown()
//
//	err := pool.Run(ctx, func(ctx context.Context) error {
//	    return backend.Screenshot(ctx, url)
//	})
//	if errors.Is(err, workerpool.ErrPoolFull) {
//	    // shed load
//	}
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrPoolFull is returned when every worker is busy and the backlog is at
// capacity.
var ErrPoolFull = errors.New("workerpool: pool is full")

// ErrPoolClosed is returned after Shutdown has been called.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Pool is a bounded goroutine pool.
type Pool struct {
	size   int
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	busy   atomic.Int64
}

// New creates a Pool with size workers and a backlog of the same size.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}

	p := &Pool{size: size, tasks: make(chan func(), size)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Size is the number of workers.
func (p *Pool) Size() int { return p.size }

// Busy reports how many tasks are executing right now.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// Submit enqueues task without blocking.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// Run executes fn on a worker and waits for its result. It returns
// ErrPoolFull immediately when the pool is saturated, and ctx.Err() if the
// caller gives up first. A panic in fn is returned as an error.
func (p *Pool) Run(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	err := p.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("workerpool: task panicked: %v", r)
			}
		}()
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		done <- fn(ctx)
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
// Safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.busy.Add(1)
		safeRun(task)
		p.busy.Add(-1)
	}
}

func safeRun(task func()) {
	defer func() { recover() }() //nolint:errcheck
	task()
}
