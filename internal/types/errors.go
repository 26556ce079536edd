// Package types provides the shared error taxonomy for the event pipeline.
package types

import (
	"errors"
	"fmt"
)

// ===========================================================================
// Logic Errors
// ===========================================================================

// ErrLogic matches any LogicError via errors.Is.
var ErrLogic = errors.New("broken logic")

// ErrEmptyQueue is returned when popping an event queue that holds no events.
// A pop is only ever triggered by a paired push notification, so hitting this
// means the notification wiring is broken.
var ErrEmptyQueue = errors.New("event queue is empty")

// ErrNotSetup is returned when a job handler lifecycle method is called before Prepare.
var ErrNotSetup = errors.New("job handler is not set up")

// ErrNilProducer is returned when a job handler is built without an engine factory.
var ErrNilProducer = errors.New("event producer is nil")

// LogicError reports a programmer or wiring defect. It is never retried and is
// expected to propagate up to the run loop.
type LogicError struct {
	Op  string
	Err error
}

// NewLogicError wraps err as a LogicError for the given operation.
func NewLogicError(op string, err error) *LogicError {
	return &LogicError{Op: op, Err: err}
}

func (e *LogicError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("broken logic, %v", e.Err)
	}
	return fmt.Sprintf("broken logic, %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *LogicError) Unwrap() error {
	return e.Err
}

// Is reports true for ErrLogic so callers can test the whole class at once.
func (e *LogicError) Is(target error) bool {
	return target == ErrLogic
}

// IsLogic reports whether err is (or wraps) a LogicError.
func IsLogic(err error) bool {
	return errors.Is(err, ErrLogic)
}

// ===========================================================================
// Lookup Errors
// ===========================================================================

// ErrUnknownInstruction is returned when an instruction item ID has no mapping.
var ErrUnknownInstruction = errors.New("unknown instruction")

// ErrUnknownVariable is returned when a variable name is not part of the job.
var ErrUnknownVariable = errors.New("unknown variable")

// ===========================================================================
// Engine Errors
// ===========================================================================

// ErrJobFinished is returned when a control request reaches an engine that already terminated.
var ErrJobFinished = errors.New("job already finished")

// ErrInvalidProcedure is returned when a procedure fails validation.
var ErrInvalidProcedure = errors.New("invalid procedure")
