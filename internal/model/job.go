package model

import (
	"context"

	"github.com/google/uuid"

	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/pubsub"
)

// JobItem mirrors one job: a procedure and its execution state.
type JobItem struct {
	ID            string
	Name          string
	ProcedurePath string
	Log           *JobLog

	status    string
	roots     []*InstructionItem
	variables []*VariableItem
	byName    map[string]*VariableItem
	broker    *pubsub.Broker[Change]
}

// NewJobItem creates a job in the Initial state.
func NewJobItem(name, procedurePath string) *JobItem {
	return &JobItem{
		ID:            uuid.New().String(),
		Name:          name,
		ProcedurePath: procedurePath,
		Log:           NewJobLog(),
		status:        event.JobInitial.String(),
		byName:        make(map[string]*VariableItem),
		broker:        pubsub.NewBroker[Change](),
	}
}

// Status returns the job status string.
func (j *JobItem) Status() string {
	return j.status
}

// SetStatus updates the job status and notifies listeners when it changed.
func (j *JobItem) SetStatus(status string) {
	if j.status == status {
		return
	}
	j.status = status
	j.publish(Change{Kind: JobStatusChanged, Value: status})
}

// SetInstructions replaces the instruction tree.
func (j *JobItem) SetInstructions(roots []*InstructionItem) {
	j.roots = roots
	var attach func(*InstructionItem)
	attach = func(it *InstructionItem) {
		it.job = j
		for _, c := range it.Children {
			attach(c)
		}
	}
	for _, r := range roots {
		attach(r)
	}
}

// Instructions returns the root items.
func (j *JobItem) Instructions() []*InstructionItem {
	return j.roots
}

// Walk visits every instruction in depth-first pre-order.
func (j *JobItem) Walk(fn func(*InstructionItem)) {
	var visit func(*InstructionItem)
	visit = func(it *InstructionItem) {
		fn(it)
		for _, c := range it.Children {
			visit(c)
		}
	}
	for _, r := range j.roots {
		visit(r)
	}
}

// Flatten returns every instruction in display order.
func (j *JobItem) Flatten() []*InstructionItem {
	var out []*InstructionItem
	j.Walk(func(it *InstructionItem) { out = append(out, it) })
	return out
}

// FindInstruction returns the item with the given ID.
func (j *JobItem) FindInstruction(id string) (*InstructionItem, bool) {
	var found *InstructionItem
	j.Walk(func(it *InstructionItem) {
		if found == nil && it.ID == id {
			found = it
		}
	})
	return found, found != nil
}

// SetVariables replaces the variable list.
func (j *JobItem) SetVariables(vars []*VariableItem) {
	j.variables = vars
	j.byName = make(map[string]*VariableItem, len(vars))
	for _, v := range vars {
		v.job = j
		j.byName[v.Name] = v
	}
}

// Variables returns variables in declaration order.
func (j *JobItem) Variables() []*VariableItem {
	return j.variables
}

// Variable looks up a variable by name.
func (j *JobItem) Variable(name string) (*VariableItem, bool) {
	v, ok := j.byName[name]
	return v, ok
}

// Changes subscribes to change notifications for the lifetime of ctx.
func (j *JobItem) Changes(ctx context.Context) <-chan pubsub.Event[Change] {
	return j.broker.Subscribe(ctx)
}

// Broker exposes the change broker for listeners that need a Subscriber.
func (j *JobItem) Broker() *pubsub.Broker[Change] {
	return j.broker
}

// Notify publishes an arbitrary change for this job.
func (j *JobItem) Notify(c Change) {
	j.publish(c)
}

// Close releases all change subscriptions.
func (j *JobItem) Close() {
	j.broker.Close()
}

func (j *JobItem) publish(c Change) {
	if j == nil {
		return
	}
	c.JobID = j.ID
	j.broker.Publish(pubsub.UpdatedEvent, c)
}
