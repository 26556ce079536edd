// Package engine defines the boundary between the execution engine and the
// job router: the Observer the engine reports through, the Runner the router
// controls, and the procedure description both sides share.
package engine

import "github.com/oactree/jobmon/internal/event"

// Observer receives execution callbacks. Implementations are called from the
// engine goroutine and must not block or touch UI state.
type Observer interface {
	InstructionStatusChanged(ref event.InstructionRef, status event.InstructionStatus)
	VariableUpdated(name string, value any, connected bool)
	JobStateChanged(state event.JobState)
	Log(severity event.Severity, source, message string)
	NextLeavesChanged(refs []event.InstructionRef)
	BreakpointHit(ref event.InstructionRef)
}

// Runner controls one execution of a procedure.
type Runner interface {
	Start() error
	Pause() error
	Step() error
	Halt() error
	SetBreakpoint(ref event.InstructionRef, on bool) error
	// Wait blocks until the engine goroutine has exited.
	Wait()
}

// Factory creates a Runner for a procedure that reports to obs.
type Factory func(p *Procedure, obs Observer) (Runner, error)
