package queue

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by the memory driver when its buffer is full.
var ErrQueueFull = errors.New("queue: memory buffer is full")

// MemoryDriver is an in-process, channel-backed queue driver. Not durable
// across restarts.
type MemoryDriver struct {
	ch chan []byte
}

// NewMemoryDriver creates an in-memory queue with a buffer of 1000 jobs.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{ch: make(chan []byte, 1000)}
}

func (d *MemoryDriver) Push(ctx context.Context, payload []byte) error {
	select {
	case d.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (d *MemoryDriver) Pop(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-d.ch:
		return payload, nil
	}
}

// Len is the number of jobs waiting.
func (d *MemoryDriver) Len() int { return len(d.ch) }
