// Package eventqueue provides the cross-thread buffer between the execution
// engine and the UI run loop: a mutex-guarded FIFO of events plus a counting
// Mailbox that carries "new event available" notifications without ever
// dropping or coalescing them.
package eventqueue

import (
	"sync"

	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/types"
)

// compactThreshold is the head offset after which the backing slice is shifted down.
const compactThreshold = 64

// Option configures a Queue.
type Option func(*Queue)

// WithNotify installs a hook that is called once after every Push.
// The hook runs on the pushing goroutine, outside the queue lock.
func WithNotify(fn func()) Option {
	return func(q *Queue) {
		q.notify = fn
	}
}

// Queue is an unbounded FIFO of events, safe for a producer racing a consumer.
type Queue struct {
	mu     sync.Mutex
	items  []event.Event
	head   int
	notify func()
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push appends ev to the tail and raises exactly one notification.
func (q *Queue) Push(ev event.Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	if q.notify != nil {
		q.notify()
	}
}

// Pop removes and returns the head event.
// Popping an empty queue is a LogicError, never a silent Empty event.
func (q *Queue) Pop() (event.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return nil, types.NewLogicError("pop", types.ErrEmptyQueue)
	}

	ev := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return ev, nil
}

// Size returns the number of buffered events. It is observational only.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
