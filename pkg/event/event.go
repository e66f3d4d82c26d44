// Package event is a small in-process dispatcher. The wizard fires
// "wizard.completed" and the server wires a listener that queues the export.
package event

import (
	"context"
	"sync"

	"github.com/shashiranjanraj/lister/pkg/logger"
)

// Handler receives an event payload.
type Handler func(ctx context.Context, payload any)

// Dispatcher maps event names to listeners. The zero value is not usable;
// call New.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// Default is the process-wide dispatcher.
var Default = New()

func New() *Dispatcher {
	return &Dispatcher{handlers: map[string][]Handler{}}
}

// Listen registers a handler for name.
func (d *Dispatcher) Listen(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = append(d.handlers[name], h)
}

func (d *Dispatcher) snapshot(name string) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Handler(nil), d.handlers[name]...)
}

// Fire calls every listener of name in registration order. A panicking
// listener is logged and does not stop the others.
func (d *Dispatcher) Fire(ctx context.Context, name string, payload any) {
	if d == nil {
		return
	}
	for _, h := range d.snapshot(name) {
		d.call(ctx, name, h, payload)
	}
}

// FireAsync runs every listener in its own goroutine and returns at once.
// Listeners get a context detached from ctx's cancellation.
func (d *Dispatcher) FireAsync(ctx context.Context, name string, payload any) {
	if d == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	for _, h := range d.snapshot(name) {
		go d.call(detached, name, h, payload)
	}
}

func (d *Dispatcher) call(ctx context.Context, name string, h Handler, payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.WithCtx(ctx).Error("event: listener panicked", "event", name, "panic", rec)
		}
	}()
	h(ctx, payload)
}

// Flush removes all listeners.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = map[string][]Handler{}
}
