package jobs

import (
	"github.com/oactree/jobmon/internal/engine"
	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/eventqueue"
)

// queueObserver turns engine callbacks into queued events.
// It runs on the engine goroutine and only touches the queue.
type queueObserver struct {
	queue *eventqueue.Queue
}

var _ engine.Observer = (*queueObserver)(nil)

func (o *queueObserver) InstructionStatusChanged(ref event.InstructionRef, status event.InstructionStatus) {
	o.queue.Push(event.InstructionStatusChanged{Ref: ref, Status: status})
}

func (o *queueObserver) VariableUpdated(name string, value any, connected bool) {
	o.queue.Push(event.VariableUpdated{Name: name, Value: value, Connected: connected})
}

func (o *queueObserver) JobStateChanged(state event.JobState) {
	o.queue.Push(event.JobStateChanged{State: state})
}

func (o *queueObserver) Log(severity event.Severity, source, message string) {
	o.queue.Push(event.LogEvent{Severity: severity, Source: source, Message: message})
}

func (o *queueObserver) NextLeavesChanged(refs []event.InstructionRef) {
	cp := make([]event.InstructionRef, len(refs))
	copy(cp, refs)
	o.queue.Push(event.NextLeavesChanged{Refs: cp})
}

func (o *queueObserver) BreakpointHit(ref event.InstructionRef) {
	o.queue.Push(event.BreakpointHit{Ref: ref})
}
