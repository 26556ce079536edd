package model

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/pubsub"
)

func nextChange(t *testing.T, ch <-chan pubsub.Event[Change]) Change {
	t.Helper()
	select {
	case ev := <-ch:
		return ev.Payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func buildJob() (*JobItem, *InstructionItem, *InstructionItem) {
	job := NewJobItem("demo", "demo.yaml")
	root := NewInstructionItem(1, "Sequence", "main")
	leaf := NewInstructionItem(2, "Wait", "")
	root.AddChild(leaf)
	job.SetInstructions([]*InstructionItem{root})
	return job, root, leaf
}

// === Unit Tests: JobItem ===

func TestJobItem_InitialState(t *testing.T) {
	job := NewJobItem("demo", "demo.yaml")
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "Initial", job.Status())
	assert.Equal(t, 0, job.Log.Size())
	assert.Empty(t, job.Instructions())
}

func TestJobItem_SetStatusPublishesOnlyOnChange(t *testing.T) {
	job := NewJobItem("demo", "demo.yaml")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := job.Changes(ctx)

	job.SetStatus("Initial")
	job.SetStatus("Running")

	c := nextChange(t, ch)
	assert.Equal(t, JobStatusChanged, c.Kind)
	assert.Equal(t, "Running", c.Value)
	assert.Equal(t, job.ID, c.JobID)
	assert.Empty(t, ch)
}

func TestJobItem_WalkIsPreOrder(t *testing.T) {
	job, root, leaf := buildJob()
	flat := job.Flatten()
	require.Len(t, flat, 2)
	assert.Same(t, root, flat[0])
	assert.Same(t, leaf, flat[1])
	assert.Equal(t, 1, leaf.Depth())
	assert.Equal(t, "Wait", leaf.DisplayName())
	assert.True(t, leaf.IsLeaf())
	assert.False(t, root.IsLeaf())

	got, ok := job.FindInstruction(leaf.ID)
	require.True(t, ok)
	assert.Same(t, leaf, got)
	_, ok = job.FindInstruction("missing")
	assert.False(t, ok)
}

// === Unit Tests: InstructionItem ===

func TestInstructionItem_StatusAndBreakpointNotify(t *testing.T) {
	job, _, leaf := buildJob()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := job.Changes(ctx)

	assert.Equal(t, "Not started", leaf.Status())
	leaf.SetStatus("Running")
	c := nextChange(t, ch)
	assert.Equal(t, ItemChanged, c.Kind)
	assert.Equal(t, leaf.ID, c.ItemID)
	assert.Equal(t, "Running", c.Value)

	leaf.SetBreakpoint(BreakpointSet)
	c = nextChange(t, ch)
	assert.Equal(t, BreakpointChanged, c.Kind)
	assert.Equal(t, "set", c.Value)
	assert.Equal(t, BreakpointSet, leaf.Breakpoint())
}

func TestInstructionItem_DetachedSettersDoNotPanic(t *testing.T) {
	item := NewInstructionItem(1, "Succeed", "ok")
	assert.NotPanics(t, func() {
		item.SetStatus("Success")
		item.SetBreakpoint(BreakpointHit)
	})
	assert.Equal(t, "Success", item.Status())
}

// === Unit Tests: VariableItem ===

func TestVariableItem_ValueAndAvailability(t *testing.T) {
	job := NewJobItem("demo", "demo.yaml")
	v := NewVariableItem("counter", "uint32", 1)
	job.SetVariables([]*VariableItem{v})

	got, ok := job.Variable("counter")
	require.True(t, ok)
	assert.Same(t, v, got)
	assert.True(t, v.Available())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := job.Changes(ctx)

	v.SetValue(42)
	c := nextChange(t, ch)
	assert.Equal(t, VariableChanged, c.Kind)
	assert.Equal(t, "counter", c.Name)
	assert.Equal(t, "42", c.Value)

	v.SetAvailable(false)
	assert.False(t, v.Available())
	assert.Equal(t, 42, v.Value())
}

func TestVariableItem_DisplayValueNil(t *testing.T) {
	v := NewVariableItem("x", "string", nil)
	assert.Equal(t, "", v.DisplayValue())
}

// === Unit Tests: JobLog ===

func TestJobLog_AppendAssignsSortableIDs(t *testing.T) {
	l := NewJobLog()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := l.Append(LogRecord{Time: base, Severity: event.SeverityInfo, Message: "a"})
	b := l.Append(LogRecord{Time: base, Severity: event.SeverityInfo, Message: "b"})

	require.NotEmpty(t, a.ID)
	_, err := ulid.ParseStrict(a.ID)
	require.NoError(t, err)
	assert.Less(t, a.ID, b.ID)
	assert.Equal(t, 2, l.Size())
	assert.Equal(t, "b", l.At(1).Message)
}

func TestJobLog_SinceAndClear(t *testing.T) {
	l := NewJobLog()
	for _, m := range []string{"a", "b", "c"} {
		l.Append(LogRecord{Message: m})
	}
	since := l.Since(1)
	require.Len(t, since, 2)
	assert.Equal(t, "b", since[0].Message)
	assert.Nil(t, l.Since(3))
	assert.Len(t, l.Since(-5), 3)

	recs := l.Records()
	recs[0].Message = "mutated"
	assert.Equal(t, "a", l.At(0).Message)

	l.Clear()
	assert.Equal(t, 0, l.Size())
}

// === Property Tests ===

func TestJobLog_AppendOnlyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msgs := rapid.SliceOf(rapid.String()).Draw(t, "msgs")
		l := NewJobLog()
		for i, m := range msgs {
			l.Append(LogRecord{Message: m})
			if l.Size() != i+1 {
				t.Fatalf("size %d after %d appends", l.Size(), i+1)
			}
		}
		for i, m := range msgs {
			if l.At(i).Message != m {
				t.Fatalf("record %d = %q, want %q", i, l.At(i).Message, m)
			}
		}
	})
}
