package eventqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrMailboxClosed is returned by Wait once the mailbox has been closed.
var ErrMailboxClosed = errors.New("mailbox closed")

var generations atomic.Uint64

// EventsReadyMsg tells the UI loop that Count events are waiting for JobID.
// The receiver must dispatch exactly Count events from the queue paired with
// the mailbox whose generation is Gen, and ignore messages from older ones.
type EventsReadyMsg struct {
	JobID string
	Gen   uint64
	Count int
}

// Mailbox carries push notifications from the producer goroutine to the
// consumer loop. Notifications are counted, so a busy consumer never loses
// any and never sees fewer wakeups worth of work than were pushed.
type Mailbox struct {
	mu      sync.Mutex
	pending int
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	gen     uint64
}

// NewMailbox creates an empty mailbox with a process-unique generation.
func NewMailbox() *Mailbox {
	return &Mailbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		gen:  generations.Add(1),
	}
}

// Gen returns the mailbox generation.
func (m *Mailbox) Gen() uint64 {
	return m.gen
}

// Close releases every Wait call. Notifications after Close are ignored.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}

// Notify records one notification. It never blocks.
func (m *Mailbox) Notify() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.pending++
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
		// A wakeup is already queued; the counter carries the rest.
	}
}

// Pending returns the number of notifications not yet collected by Wait.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Wait blocks until at least one notification is pending, then returns and
// resets the pending count. Pending notifications are still delivered after
// Close; an empty closed mailbox returns ErrMailboxClosed.
func (m *Mailbox) Wait(ctx context.Context) (int, error) {
	for {
		n, closed := m.take()
		if n > 0 {
			return n, nil
		}
		if closed {
			return 0, ErrMailboxClosed
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-m.done:
		case <-m.wake:
		}
	}
}

func (m *Mailbox) take() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.pending
	m.pending = 0
	return n, m.closed
}

// WaitCmd returns a Bubble Tea command that waits for notifications and
// delivers them to Update as an EventsReadyMsg.
// Returns nil from the command when ctx is cancelled or the mailbox is closed.
// Re-issue the command after handling each EventsReadyMsg.
func (m *Mailbox) WaitCmd(ctx context.Context, jobID string) tea.Cmd {
	return func() tea.Msg {
		n, err := m.Wait(ctx)
		if err != nil {
			return nil
		}
		return EventsReadyMsg{JobID: jobID, Gen: m.gen, Count: n}
	}
}
