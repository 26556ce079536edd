package testutil

import "testing"

// WithDemo is a Sequence that logs, copies counter into result and succeeds:
//
//	1 Sequence "main"
//	  2 Message
//	  3 Copy
func (b *Builder) WithDemo() *Builder {
	return b.
		WithVariable("counter", "int", 1).
		WithVariable("result", "int", nil).
		WithRoot(Sequence("main",
			Message("hello"),
			Copy("counter", "result"),
		))
}

// Demo builds the demo procedure.
func Demo(t *testing.T) *Builder {
	t.Helper()
	return NewBuilder(t, "demo").WithDemo()
}

// Messages builds a Sequence of n Message leaves.
func Messages(t *testing.T, n int) *Builder {
	t.Helper()
	seq := Sequence("messages")
	for i := 0; i < n; i++ {
		seq.Children = append(seq.Children, Message("tick"))
	}
	return NewBuilder(t, "messages").WithRoot(seq)
}
