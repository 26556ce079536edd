package model

import (
	"github.com/google/uuid"

	"github.com/oactree/jobmon/internal/event"
)

// BreakpointState is the breakpoint bookkeeping for one instruction.
type BreakpointState int

const (
	BreakpointNone BreakpointState = iota
	BreakpointSet
	BreakpointHit
)

func (b BreakpointState) String() string {
	switch b {
	case BreakpointSet:
		return "set"
	case BreakpointHit:
		return "hit"
	default:
		return "none"
	}
}

// InstructionItem mirrors one engine instruction.
type InstructionItem struct {
	ID       string
	Ref      event.InstructionRef
	Type     string
	Name     string
	Parent   *InstructionItem
	Children []*InstructionItem

	status     string
	breakpoint BreakpointState
	job        *JobItem
}

// NewInstructionItem creates an item with a fresh ID and "Not started" status.
func NewInstructionItem(ref event.InstructionRef, typ, name string) *InstructionItem {
	return &InstructionItem{
		ID:     uuid.New().String(),
		Ref:    ref,
		Type:   typ,
		Name:   name,
		status: event.StatusNotStarted.String(),
	}
}

// AddChild appends child and sets its parent.
func (i *InstructionItem) AddChild(child *InstructionItem) {
	child.Parent = i
	child.job = i.job
	i.Children = append(i.Children, child)
}

// Status returns the display status.
func (i *InstructionItem) Status() string {
	return i.status
}

// SetStatus updates the status and notifies listeners when it changed.
func (i *InstructionItem) SetStatus(status string) {
	if i.status == status {
		return
	}
	i.status = status
	i.job.publish(Change{Kind: ItemChanged, ItemID: i.ID, Value: status})
}

// Breakpoint returns the breakpoint state.
func (i *InstructionItem) Breakpoint() BreakpointState {
	return i.breakpoint
}

// SetBreakpoint updates breakpoint bookkeeping.
func (i *InstructionItem) SetBreakpoint(b BreakpointState) {
	if i.breakpoint == b {
		return
	}
	i.breakpoint = b
	i.job.publish(Change{Kind: BreakpointChanged, ItemID: i.ID, Value: b.String()})
}

// DisplayName returns the name, falling back to the type.
func (i *InstructionItem) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Type
}

// Depth returns the number of ancestors.
func (i *InstructionItem) Depth() int {
	d := 0
	for p := i.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// IsLeaf reports whether the item has no children.
func (i *InstructionItem) IsLeaf() bool {
	return len(i.Children) == 0
}
