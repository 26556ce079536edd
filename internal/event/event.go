// Package event defines the closed set of domain events that flow from the
// execution engine to the UI run loop.
//
// Event is a sealed sum type: only the variants declared in this package
// implement it. Consumers switch on the concrete type; the dispatcher's switch
// is exhaustive over the list in allKinds.
package event

import "fmt"

// Kind is the tag identifying which variant an Event holds.
type Kind int

const (
	KindEmpty Kind = iota
	KindInstructionStatusChanged
	KindVariableUpdated
	KindJobStateChanged
	KindLog
	KindNextLeavesChanged
	KindBreakpointHit
)

var kindNames = map[Kind]string{
	KindEmpty:                    "empty",
	KindInstructionStatusChanged: "instruction_status_changed",
	KindVariableUpdated:          "variable_updated",
	KindJobStateChanged:          "job_state_changed",
	KindLog:                      "log",
	KindNextLeavesChanged:        "next_leaves_changed",
	KindBreakpointHit:            "breakpoint_hit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is a single immutable domain event.
type Event interface {
	Kind() Kind
	isEvent()
}

// InstructionRef is the engine's opaque identity for an instruction.
type InstructionRef uint64

// Empty is the uninitialized event. Dispatching it is always a no-op.
type Empty struct{}

// InstructionStatusChanged reports a new execution status for one instruction.
type InstructionStatusChanged struct {
	Ref    InstructionRef
	Status InstructionStatus
}

// VariableUpdated reports a new value and connectivity for a workspace variable.
type VariableUpdated struct {
	Name      string
	Value     any
	Connected bool
}

// JobStateChanged reports a job state transition.
type JobStateChanged struct {
	State JobState
}

// LogEvent carries one log message produced by the engine.
type LogEvent struct {
	Severity Severity
	Source   string
	Message  string
}

// NextLeavesChanged lists the instructions that will run next.
type NextLeavesChanged struct {
	Refs []InstructionRef
}

// BreakpointHit reports that execution paused on a breakpoint.
type BreakpointHit struct {
	Ref InstructionRef
}

func (Empty) Kind() Kind                    { return KindEmpty }
func (InstructionStatusChanged) Kind() Kind { return KindInstructionStatusChanged }
func (VariableUpdated) Kind() Kind          { return KindVariableUpdated }
func (JobStateChanged) Kind() Kind          { return KindJobStateChanged }
func (LogEvent) Kind() Kind                 { return KindLog }
func (NextLeavesChanged) Kind() Kind        { return KindNextLeavesChanged }
func (BreakpointHit) Kind() Kind            { return KindBreakpointHit }

func (Empty) isEvent()                    {}
func (InstructionStatusChanged) isEvent() {}
func (VariableUpdated) isEvent()          {}
func (JobStateChanged) isEvent()          {}
func (LogEvent) isEvent()                 {}
func (NextLeavesChanged) isEvent()        {}
func (BreakpointHit) isEvent()            {}

var (
	_ Event = Empty{}
	_ Event = InstructionStatusChanged{}
	_ Event = VariableUpdated{}
	_ Event = JobStateChanged{}
	_ Event = LogEvent{}
	_ Event = NextLeavesChanged{}
	_ Event = BreakpointHit{}
)

// AllKinds returns every event kind, in declaration order.
func AllKinds() []Kind {
	return []Kind{
		KindEmpty,
		KindInstructionStatusChanged,
		KindVariableUpdated,
		KindJobStateChanged,
		KindLog,
		KindNextLeavesChanged,
		KindBreakpointHit,
	}
}
