package eventqueue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/types"
)

func TestQueue_PushPopFIFO(t *testing.T) {
	q := New()
	a := event.JobStateChanged{State: event.JobInitial}
	b := event.LogEvent{Severity: event.SeverityInfo, Message: "b"}

	q.Push(a)
	q.Push(b)
	require.Equal(t, 2, q.Size())

	got, err := q.Pop()
	require.NoError(t, err)
	require.Equal(t, event.Event(a), got)

	got, err = q.Pop()
	require.NoError(t, err)
	require.Equal(t, event.Event(b), got)

	require.Equal(t, 0, q.Size())
}

func TestQueue_PopEmptyIsLogicError(t *testing.T) {
	q := New()

	ev, err := q.Pop()
	require.Nil(t, ev, "empty pop must not return a placeholder event")
	require.Error(t, err)
	require.True(t, types.IsLogic(err))
	require.ErrorIs(t, err, types.ErrEmptyQueue)
	require.Contains(t, err.Error(), "broken logic")
	require.Contains(t, err.Error(), "event queue is empty")
}

func TestQueue_PopAfterDrainIsLogicError(t *testing.T) {
	q := New()
	q.Push(event.Empty{})
	_, err := q.Pop()
	require.NoError(t, err)

	_, err = q.Pop()
	require.ErrorIs(t, err, types.ErrEmptyQueue)
}

func TestQueue_NotifyOncePerPush(t *testing.T) {
	var calls atomic.Int32
	q := New(WithNotify(func() { calls.Add(1) }))

	for i := 0; i < 5; i++ {
		q.Push(event.InstructionStatusChanged{Ref: event.InstructionRef(i), Status: event.StatusRunning})
	}
	require.Equal(t, int32(5), calls.Load())

	for i := 0; i < 5; i++ {
		_, err := q.Pop()
		require.NoError(t, err)
	}
	require.Equal(t, int32(5), calls.Load(), "pop must not notify")
}

func TestQueue_NotifyRunsOutsideLock(t *testing.T) {
	var q *Queue
	var sizeSeen int
	q = New(WithNotify(func() {
		// Would deadlock if the hook ran under the queue mutex.
		sizeSeen = q.Size()
	}))

	q.Push(event.Empty{})
	require.Equal(t, 1, sizeSeen)
}

func TestQueue_CompactionPreservesOrder(t *testing.T) {
	q := New()
	const total = 500

	next := 0
	for i := 0; i < total; i++ {
		q.Push(event.InstructionStatusChanged{Ref: event.InstructionRef(i)})
		// Pop roughly every other push so the head walks forward past the compaction threshold.
		if i%2 == 1 {
			ev, err := q.Pop()
			require.NoError(t, err)
			require.Equal(t, event.InstructionRef(next), ev.(event.InstructionStatusChanged).Ref)
			next++
		}
	}
	for q.Size() > 0 {
		ev, err := q.Pop()
		require.NoError(t, err)
		require.Equal(t, event.InstructionRef(next), ev.(event.InstructionStatusChanged).Ref)
		next++
	}
	require.Equal(t, total, next)
}

func TestQueue_ConcurrentProducerConsumer(t *testing.T) {
	mb := NewMailbox()
	q := New(WithNotify(mb.Notify))
	const total = 2000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			q.Push(event.InstructionStatusChanged{Ref: event.InstructionRef(i)})
		}
	}()

	received := make([]event.InstructionRef, 0, total)
	ctx := t.Context()
	for len(received) < total {
		n, err := mb.Wait(ctx)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			ev, err := q.Pop()
			require.NoError(t, err, "every notification must have a matching event")
			received = append(received, ev.(event.InstructionStatusChanged).Ref)
		}
	}
	wg.Wait()

	require.Equal(t, 0, q.Size())
	require.Equal(t, 0, mb.Pending())
	for i, ref := range received {
		require.Equal(t, event.InstructionRef(i), ref, "events must arrive in push order")
	}
}

// TestQueue_Properties checks FIFO order and the size invariant over random
// push/pop interleavings.
func TestQueue_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var notified int
		q := New(WithNotify(func() { notified++ }))

		var model []event.InstructionRef
		pushes, pops := 0, 0

		numOps := rapid.IntRange(1, 200).Draw(t, "numOps")
		for i := 0; i < numOps; i++ {
			if rapid.Bool().Draw(t, "push") {
				ref := event.InstructionRef(rapid.Uint64().Draw(t, "ref"))
				q.Push(event.InstructionStatusChanged{Ref: ref, Status: event.StatusRunning})
				model = append(model, ref)
				pushes++
			} else {
				ev, err := q.Pop()
				if len(model) == 0 {
					if !types.IsLogic(err) || ev != nil {
						t.Fatalf("empty pop returned (%v, %v)", ev, err)
					}
					continue
				}
				if err != nil {
					t.Fatalf("unexpected pop error: %v", err)
				}
				got := ev.(event.InstructionStatusChanged).Ref
				if got != model[0] {
					t.Fatalf("FIFO violated: got %d want %d", got, model[0])
				}
				model = model[1:]
				pops++
			}

			if q.Size() != pushes-pops {
				t.Fatalf("size %d != pushes %d - pops %d", q.Size(), pushes, pops)
			}
			if notified != pushes {
				t.Fatalf("notified %d times for %d pushes", notified, pushes)
			}
		}
	})
}
