// Package dispatcher bridges the event queue's "new event" notification to a
// same-thread dispatch against a CallbackTable.
//
// A Dispatcher must only ever be driven from the UI goroutine. Each
// OnNewEvent call pops exactly one event, so the caller must invoke it once
// per notification; calling it more often surfaces as an empty-queue
// LogicError.
package dispatcher

import (
	"context"
	"sync/atomic"

	"github.com/oactree/jobmon/internal/event"
)

// Source is the consumer side of an event queue.
type Source interface {
	Pop() (event.Event, error)
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithMiddleware adds middleware around every dispatch.
// Middleware is applied in order: first middleware wraps outermost.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(d *Dispatcher) {
		d.middlewares = append(d.middlewares, middlewares...)
	}
}

// Dispatcher pops events and routes them to the callback table.
type Dispatcher struct {
	src         Source
	table       CallbackTable
	middlewares []Middleware
	handler     Handler

	dispatched atomic.Int64
	dropped    atomic.Int64
}

// New creates a dispatcher reading from src.
func New(src Source, table CallbackTable, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		src:   src,
		table: table,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handler = ChainMiddleware(d.route, d.middlewares...)
	return d
}

// route is the innermost handler.
func (d *Dispatcher) route(ctx context.Context, ev event.Event) {
	if d.table.Dispatch(ctx, ev) {
		d.dispatched.Add(1)
		return
	}
	d.dropped.Add(1)
}

// OnNewEvent pops one event and dispatches it.
// The only error is the queue's LogicError, returned unchanged.
func (d *Dispatcher) OnNewEvent(ctx context.Context) error {
	ev, err := d.src.Pop()
	if err != nil {
		return err
	}
	d.handler(ctx, ev)
	return nil
}

// Drain calls OnNewEvent n times, stopping at the first error.
func (d *Dispatcher) Drain(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := d.OnNewEvent(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Table returns the callback table the dispatcher routes to.
func (d *Dispatcher) Table() CallbackTable {
	return d.table
}

// Dispatched returns how many events reached a callback.
func (d *Dispatcher) Dispatched() int64 {
	return d.dispatched.Load()
}

// Dropped returns how many events had no callback (including Empty).
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}
