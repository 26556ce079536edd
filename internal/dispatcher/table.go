package dispatcher

import (
	"context"

	"github.com/oactree/jobmon/internal/event"
)

// CallbackTable maps each event kind to a typed callback.
// A nil field means no callback is registered for that kind; such events are
// dropped without error so that an engine emitting new kinds cannot break
// an older UI. Build the table once and do not mutate it afterwards.
type CallbackTable struct {
	OnInstructionStatus func(ctx context.Context, ev event.InstructionStatusChanged)
	OnVariableUpdated   func(ctx context.Context, ev event.VariableUpdated)
	OnJobState          func(ctx context.Context, ev event.JobStateChanged)
	OnLog               func(ctx context.Context, ev event.LogEvent)
	OnNextLeaves        func(ctx context.Context, ev event.NextLeavesChanged)
	OnBreakpointHit     func(ctx context.Context, ev event.BreakpointHit)
}

// Dispatch invokes the callback registered for ev's kind.
// Returns false when nothing ran (Empty, unregistered, or unknown variant).
func (t CallbackTable) Dispatch(ctx context.Context, ev event.Event) bool {
	switch e := ev.(type) {
	case event.Empty:
		return false
	case event.InstructionStatusChanged:
		if t.OnInstructionStatus == nil {
			return false
		}
		t.OnInstructionStatus(ctx, e)
	case event.VariableUpdated:
		if t.OnVariableUpdated == nil {
			return false
		}
		t.OnVariableUpdated(ctx, e)
	case event.JobStateChanged:
		if t.OnJobState == nil {
			return false
		}
		t.OnJobState(ctx, e)
	case event.LogEvent:
		if t.OnLog == nil {
			return false
		}
		t.OnLog(ctx, e)
	case event.NextLeavesChanged:
		if t.OnNextLeaves == nil {
			return false
		}
		t.OnNextLeaves(ctx, e)
	case event.BreakpointHit:
		if t.OnBreakpointHit == nil {
			return false
		}
		t.OnBreakpointHit(ctx, e)
	default:
		return false
	}
	return true
}

// Registered reports whether a callback exists for kind.
func (t CallbackTable) Registered(kind event.Kind) bool {
	switch kind {
	case event.KindInstructionStatusChanged:
		return t.OnInstructionStatus != nil
	case event.KindVariableUpdated:
		return t.OnVariableUpdated != nil
	case event.KindJobStateChanged:
		return t.OnJobState != nil
	case event.KindLog:
		return t.OnLog != nil
	case event.KindNextLeavesChanged:
		return t.OnNextLeaves != nil
	case event.KindBreakpointHit:
		return t.OnBreakpointHit != nil
	default:
		return false
	}
}
