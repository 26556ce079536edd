package testutil

import (
	"time"

	"github.com/oactree/jobmon/internal/engine"
)

// InstructionOption configures an instruction.
type InstructionOption func(*engine.Instruction)

// Name sets the instruction name.
func Name(name string) InstructionOption {
	return func(in *engine.Instruction) { in.Name = name }
}

// Text sets the message text.
func Text(text string) InstructionOption {
	return func(in *engine.Instruction) { in.Text = text }
}

// Severity sets the severity of a Log instruction.
func Severity(sev string) InstructionOption {
	return func(in *engine.Instruction) { in.Severity = sev }
}

// Timeout sets the duration of a Wait instruction.
func Timeout(d time.Duration) InstructionOption {
	return func(in *engine.Instruction) { in.Timeout = d }
}

// Node creates an instruction of typ with children.
func Node(typ string, children []*engine.Instruction, opts ...InstructionOption) *engine.Instruction {
	in := &engine.Instruction{Type: typ, Children: children}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Sequence creates a named Sequence.
func Sequence(name string, children ...*engine.Instruction) *engine.Instruction {
	return Node(engine.TypeSequence, children, Name(name))
}

// Fallback creates a named Fallback.
func Fallback(name string, children ...*engine.Instruction) *engine.Instruction {
	return Node(engine.TypeFallback, children, Name(name))
}

// Inverter wraps child.
func Inverter(child *engine.Instruction) *engine.Instruction {
	return Node(engine.TypeInverter, []*engine.Instruction{child})
}

// Message creates a Message leaf.
func Message(text string, opts ...InstructionOption) *engine.Instruction {
	return Node(engine.TypeMessage, nil, append([]InstructionOption{Text(text)}, opts...)...)
}

// Log creates a Log leaf at sev.
func Log(sev, text string) *engine.Instruction {
	return Node(engine.TypeLog, nil, Severity(sev), Text(text))
}

// Wait creates a Wait leaf.
func Wait(d time.Duration) *engine.Instruction {
	return Node(engine.TypeWait, nil, Timeout(d))
}

// Copy creates a Copy leaf.
func Copy(input, output string) *engine.Instruction {
	in := Node(engine.TypeCopy, nil)
	in.Input, in.Output = input, output
	return in
}

// Disconnect creates a Disconnect leaf.
func Disconnect(variable string) *engine.Instruction {
	in := Node(engine.TypeDisconnect, nil)
	in.Variable = variable
	return in
}

// Succeed creates a Succeed leaf.
func Succeed(opts ...InstructionOption) *engine.Instruction {
	return Node(engine.TypeSucceed, nil, opts...)
}

// Fail creates a Fail leaf.
func Fail(opts ...InstructionOption) *engine.Instruction {
	return Node(engine.TypeFail, nil, opts...)
}
