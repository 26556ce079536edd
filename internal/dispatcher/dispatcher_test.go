package dispatcher

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/eventqueue"
	jlog "github.com/oactree/jobmon/internal/log"
	"github.com/oactree/jobmon/internal/types"
)

// ===========================================================================
// Test Helpers
// ===========================================================================

// recorder captures every callback invocation in order.
type recorder struct {
	got []event.Event
}

func (r *recorder) table() CallbackTable {
	return CallbackTable{
		OnInstructionStatus: func(_ context.Context, ev event.InstructionStatusChanged) { r.got = append(r.got, ev) },
		OnVariableUpdated:   func(_ context.Context, ev event.VariableUpdated) { r.got = append(r.got, ev) },
		OnJobState:          func(_ context.Context, ev event.JobStateChanged) { r.got = append(r.got, ev) },
		OnLog:               func(_ context.Context, ev event.LogEvent) { r.got = append(r.got, ev) },
		OnNextLeaves:        func(_ context.Context, ev event.NextLeavesChanged) { r.got = append(r.got, ev) },
		OnBreakpointHit:     func(_ context.Context, ev event.BreakpointHit) { r.got = append(r.got, ev) },
	}
}

func allVariants() []event.Event {
	return []event.Event{
		event.InstructionStatusChanged{Ref: 1, Status: event.StatusRunning},
		event.VariableUpdated{Name: "x", Value: 3, Connected: true},
		event.JobStateChanged{State: event.JobRunning},
		event.LogEvent{Severity: event.SeverityWarning, Source: "engine", Message: "careful"},
		event.NextLeavesChanged{Refs: []event.InstructionRef{2, 3}},
		event.BreakpointHit{Ref: 2},
	}
}

// ===========================================================================
// Routing
// ===========================================================================

func TestDispatcher_RoutesEveryKindInOrder(t *testing.T) {
	q := eventqueue.New()
	rec := &recorder{}
	d := New(q, rec.table())

	events := allVariants()
	for _, ev := range events {
		q.Push(ev)
	}

	require.NoError(t, d.Drain(context.Background(), len(events)))
	require.Equal(t, events, rec.got)
	require.Equal(t, int64(len(events)), d.Dispatched())
	require.Equal(t, int64(0), d.Dropped())
}

func TestDispatcher_OnNewEventPopsExactlyOne(t *testing.T) {
	q := eventqueue.New()
	rec := &recorder{}
	d := New(q, rec.table())

	q.Push(event.JobStateChanged{State: event.JobInitial})
	q.Push(event.JobStateChanged{State: event.JobRunning})

	require.NoError(t, d.OnNewEvent(context.Background()))
	require.Len(t, rec.got, 1)
	require.Equal(t, 1, q.Size())
}

func TestDispatcher_UnregisteredKindIsSilentlyDropped(t *testing.T) {
	q := eventqueue.New()
	var states []event.JobState
	d := New(q, CallbackTable{
		OnJobState: func(_ context.Context, ev event.JobStateChanged) { states = append(states, ev.State) },
	})

	q.Push(event.LogEvent{Severity: event.SeverityInfo, Message: "nobody listens"})
	q.Push(event.VariableUpdated{Name: "v"})

	require.NotPanics(t, func() {
		require.NoError(t, d.Drain(context.Background(), 2))
	})
	require.Empty(t, states, "no registered callback should have run")
	require.Equal(t, int64(2), d.Dropped())
	require.Equal(t, int64(0), d.Dispatched())
}

func TestDispatcher_EmptyEventIsNoop(t *testing.T) {
	q := eventqueue.New()
	rec := &recorder{}
	d := New(q, rec.table())

	q.Push(event.Empty{})
	require.NoError(t, d.OnNewEvent(context.Background()))
	require.Empty(t, rec.got)
	require.Equal(t, int64(1), d.Dropped())
}

func TestDispatcher_EmptyQueueReturnsLogicError(t *testing.T) {
	d := New(eventqueue.New(), CallbackTable{})

	err := d.OnNewEvent(context.Background())
	require.Error(t, err)
	require.True(t, types.IsLogic(err))
	require.ErrorIs(t, err, types.ErrEmptyQueue)
}

func TestDispatcher_DrainStopsAtFirstError(t *testing.T) {
	q := eventqueue.New()
	rec := &recorder{}
	d := New(q, rec.table())

	q.Push(event.JobStateChanged{State: event.JobRunning})

	err := d.Drain(context.Background(), 3)
	require.ErrorIs(t, err, types.ErrEmptyQueue)
	require.Len(t, rec.got, 1, "the available event is still dispatched")
}

func TestDispatcher_NotificationDrivenPump(t *testing.T) {
	mb := eventqueue.NewMailbox()
	q := eventqueue.New(eventqueue.WithNotify(mb.Notify))
	rec := &recorder{}
	d := New(q, rec.table())

	go func() {
		for _, ev := range allVariants() {
			q.Push(ev)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for len(rec.got) < len(allVariants()) {
		n, err := mb.Wait(ctx)
		require.NoError(t, err)
		require.NoError(t, d.Drain(ctx, n))
	}
	require.Equal(t, allVariants(), rec.got)
}

// ===========================================================================
// Table
// ===========================================================================

func TestCallbackTable_Registered(t *testing.T) {
	full := (&recorder{}).table()
	for _, k := range event.AllKinds() {
		if k == event.KindEmpty {
			require.False(t, full.Registered(k), "empty never has a callback")
			continue
		}
		require.True(t, full.Registered(k), k.String())
	}
	require.False(t, CallbackTable{}.Registered(event.KindLog))
}

// ===========================================================================
// Middleware
// ===========================================================================

func TestChainMiddleware_Order(t *testing.T) {
	var trail []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, ev event.Event) {
				trail = append(trail, name+">")
				next(ctx, ev)
				trail = append(trail, "<"+name)
			}
		}
	}

	h := ChainMiddleware(func(context.Context, event.Event) { trail = append(trail, "handler") },
		mw("outer"), mw("inner"))
	h(context.Background(), event.Empty{})

	require.Equal(t, []string{"outer>", "inner>", "handler", "<inner", "<outer"}, trail)
}

func TestDispatcher_MiddlewareSeesEveryPoppedEvent(t *testing.T) {
	q := eventqueue.New()
	var kinds []event.Kind
	spy := func(next Handler) Handler {
		return func(ctx context.Context, ev event.Event) {
			kinds = append(kinds, ev.Kind())
			next(ctx, ev)
		}
	}
	d := New(q, CallbackTable{}, WithMiddleware(spy))

	q.Push(event.Empty{})
	q.Push(event.BreakpointHit{Ref: 1})
	require.NoError(t, d.Drain(context.Background(), 2))

	require.Equal(t, []event.Kind{event.KindEmpty, event.KindBreakpointHit}, kinds)
}

func TestLoggingMiddleware_WritesKind(t *testing.T) {
	var buf bytes.Buffer
	logger := jlog.New(&buf)
	h := ChainMiddleware(func(context.Context, event.Event) {}, NewLoggingMiddleware(logger))

	h(context.Background(), event.JobStateChanged{State: event.JobRunning})
	require.Contains(t, buf.String(), "[dispatch] event dispatched kind=job_state_changed")
}

func TestSlowDispatchMiddleware(t *testing.T) {
	var buf bytes.Buffer
	var slowKinds []event.Kind
	mw := NewSlowDispatchMiddleware(SlowDispatchConfig{
		Threshold: 5 * time.Millisecond,
		Logger:    jlog.New(&buf),
		OnSlow:    func(k event.Kind, _ time.Duration) { slowKinds = append(slowKinds, k) },
	})

	fast := ChainMiddleware(func(context.Context, event.Event) {}, mw)
	fast(context.Background(), event.LogEvent{})
	require.Empty(t, slowKinds)
	require.Empty(t, buf.String())

	slow := ChainMiddleware(func(context.Context, event.Event) { time.Sleep(15 * time.Millisecond) }, mw)
	slow(context.Background(), event.LogEvent{})
	require.Equal(t, []event.Kind{event.KindLog}, slowKinds)
	require.Contains(t, buf.String(), "callback exceeded time threshold")
}

func TestSlowDispatchMiddleware_DefaultThreshold(t *testing.T) {
	var called bool
	h := ChainMiddleware(func(context.Context, event.Event) { called = true },
		NewSlowDispatchMiddleware(SlowDispatchConfig{}))
	require.NotPanics(t, func() { h(context.Background(), event.Empty{}) })
	require.True(t, called)
}
