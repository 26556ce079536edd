// Package jobs routes execution events for one job into its presentation
// model.
//
// A Handler owns the event queue, the notification mailbox and the
// dispatcher for one job. The engine pushes events from its own goroutine;
// everything else on Handler must be called from the UI goroutine (the
// Bubble Tea Update loop or Pump).
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oactree/jobmon/internal/dispatcher"
	"github.com/oactree/jobmon/internal/engine"
	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/eventqueue"
	"github.com/oactree/jobmon/internal/log"
	"github.com/oactree/jobmon/internal/model"
	"github.com/oactree/jobmon/internal/pubsub"
	"github.com/oactree/jobmon/internal/types"
)

// Option configures a Handler.
type Option func(*Handler)

// WithDiagnostics replaces the default LogDiagnostics.
func WithDiagnostics(d Diagnostics) Option {
	return func(h *Handler) {
		h.diag = d
	}
}

// WithMiddleware wraps every dispatch. The first middleware is outermost.
func WithMiddleware(mw ...dispatcher.Middleware) Option {
	return func(h *Handler) {
		h.middlewares = append(h.middlewares, mw...)
	}
}

// WithLogSink mirrors every appended log record to sink.
func WithLogSink(sink LogSink) Option {
	return func(h *Handler) {
		h.sink = sink
	}
}

// WithClock sets the time source for log records.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// WithLogger sets the logger for handler diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// Handler connects one job's engine to its presentation model.
type Handler struct {
	job     *model.JobItem
	proc    *engine.Procedure
	factory engine.Factory

	diag        Diagnostics
	middlewares []dispatcher.Middleware
	sink        LogSink
	now         func() time.Time
	logger      *log.Logger

	queue      *eventqueue.Queue
	mailbox    *eventqueue.Mailbox
	dispatcher *dispatcher.Dispatcher
	runner     engine.Runner

	byRef      map[event.InstructionRef]*model.InstructionItem
	nextLeaves []*model.InstructionItem
	hit        *model.InstructionItem
	state      event.JobState
}

// NewHandler creates a handler for job running proc. Call Prepare before any
// lifecycle operation.
func NewHandler(job *model.JobItem, proc *engine.Procedure, factory engine.Factory, opts ...Option) (*Handler, error) {
	if factory == nil {
		return nil, types.NewLogicError("new handler", types.ErrNilProducer)
	}
	if job == nil || proc == nil {
		return nil, types.NewLogicError("new handler", errors.New("job and procedure are required"))
	}

	h := &Handler{
		job:     job,
		proc:    proc,
		factory: factory,
		now:     time.Now,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.diag == nil {
		h.diag = NewLogDiagnostics(h.logger, DefaultMissWindow)
	}
	return h, nil
}

// Prepare builds the presentation tree, the event pipeline and a fresh
// runner. Calling it again tears down the previous runner first.
func (h *Handler) Prepare() error {
	h.teardown()

	h.byRef = make(map[event.InstructionRef]*model.InstructionItem, h.proc.Count())
	var build func(in *engine.Instruction) *model.InstructionItem
	build = func(in *engine.Instruction) *model.InstructionItem {
		item := model.NewInstructionItem(in.Ref, in.Type, in.Name)
		h.byRef[in.Ref] = item
		for _, c := range in.Children {
			item.AddChild(build(c))
		}
		return item
	}
	roots := make([]*model.InstructionItem, 0, len(h.proc.Instructions))
	for _, in := range h.proc.Instructions {
		roots = append(roots, build(in))
	}
	h.job.SetInstructions(roots)

	vars := make([]*model.VariableItem, 0, len(h.proc.Variables))
	for _, v := range h.proc.Variables {
		vars = append(vars, model.NewVariableItem(v.Name, v.Type, v.Value))
	}
	h.job.SetVariables(vars)

	mailbox := eventqueue.NewMailbox()
	queue := eventqueue.New(eventqueue.WithNotify(mailbox.Notify))
	runner, err := h.factory(h.proc, &queueObserver{queue: queue})
	if err != nil {
		mailbox.Close()
		return fmt.Errorf("creating runner: %w", err)
	}

	h.mailbox = mailbox
	h.queue = queue
	h.dispatcher = dispatcher.New(queue, h.callbacks(), dispatcher.WithMiddleware(h.middlewares...))
	h.runner = runner
	h.nextLeaves = nil
	h.state = event.JobInitial
	h.job.SetStatus(event.JobInitial.String())

	h.logger.Debug(log.CatJob, "prepared", "job", h.job.ID, "procedure", h.proc.Name, "instructions", len(h.byRef))
	return nil
}

// teardown halts and joins the current runner and retires its mailbox.
// Events still queued for the old runner are discarded.
func (h *Handler) teardown() {
	if h.runner != nil {
		if err := h.runner.Halt(); err != nil {
			h.logger.Warn(log.CatJob, "halt failed", "job", h.job.ID, "error", err)
		}
		h.runner.Wait()
		h.runner = nil
	}
	if h.mailbox != nil {
		h.mailbox.Close()
	}
	h.mailbox = nil
	h.queue = nil
	h.dispatcher = nil
	h.hit = nil
}

// Start runs the job continuously.
func (h *Handler) Start() error {
	if h.runner == nil {
		return types.NewLogicError("start", types.ErrNotSetup)
	}
	return h.runner.Start()
}

// Pause stops the job before its next instruction.
func (h *Handler) Pause() error {
	if h.runner == nil {
		return types.NewLogicError("pause", types.ErrNotSetup)
	}
	return h.runner.Pause()
}

// Step runs a single instruction.
func (h *Handler) Step() error {
	if h.runner == nil {
		return types.NewLogicError("step", types.ErrNotSetup)
	}
	return h.runner.Step()
}

// Stop halts the job. The engine reports Halted once it has unwound.
func (h *Handler) Stop() error {
	if h.runner == nil {
		return types.NewLogicError("stop", types.ErrNotSetup)
	}
	return h.runner.Halt()
}

// Reset restarts the job from scratch: the log is cleared, every item
// returns to its initial state and breakpoints are carried over.
func (h *Handler) Reset() error {
	if h.runner == nil {
		return types.NewLogicError("reset", types.ErrNotSetup)
	}
	return h.rebuild(true)
}

// Reload swaps in a new procedure and re-prepares. The log is kept.
func (h *Handler) Reload(p *engine.Procedure) error {
	if p == nil {
		return fmt.Errorf("reload: %w", types.ErrInvalidProcedure)
	}
	h.proc = p
	if err := h.rebuild(false); err != nil {
		return err
	}
	h.appendLog(context.Background(), event.SeverityInfo, "jobmon", "procedure reloaded")
	return nil
}

func (h *Handler) rebuild(clearLog bool) error {
	var breakpoints []event.InstructionRef
	h.job.Walk(func(it *model.InstructionItem) {
		if it.Breakpoint() != model.BreakpointNone {
			breakpoints = append(breakpoints, it.Ref)
		}
	})

	if clearLog {
		h.job.Log.Clear()
		h.job.Notify(model.Change{Kind: model.LogChanged})
	}
	if err := h.Prepare(); err != nil {
		return err
	}

	for _, ref := range breakpoints {
		item, ok := h.byRef[ref]
		if !ok {
			continue
		}
		if err := h.runner.SetBreakpoint(ref, true); err != nil {
			return fmt.Errorf("restoring breakpoint %d: %w", ref, err)
		}
		item.SetBreakpoint(model.BreakpointSet)
	}
	return nil
}

// SetBreakpoint sets or clears a breakpoint on the instruction item itemID.
func (h *Handler) SetBreakpoint(itemID string, on bool) error {
	if h.runner == nil {
		return types.NewLogicError("set breakpoint", types.ErrNotSetup)
	}
	item, ok := h.job.FindInstruction(itemID)
	if !ok {
		return fmt.Errorf("item %s: %w", itemID, types.ErrUnknownInstruction)
	}
	if err := h.runner.SetBreakpoint(item.Ref, on); err != nil {
		return fmt.Errorf("set breakpoint: %w", err)
	}
	if on {
		item.SetBreakpoint(model.BreakpointSet)
	} else {
		item.SetBreakpoint(model.BreakpointNone)
	}
	return nil
}

// OnNewEvent dispatches exactly one queued event.
func (h *Handler) OnNewEvent(ctx context.Context) error {
	if h.dispatcher == nil {
		return types.NewLogicError("dispatch", types.ErrNotSetup)
	}
	return h.dispatcher.OnNewEvent(ctx)
}

// Drain dispatches n queued events, stopping at the first error.
func (h *Handler) Drain(ctx context.Context, n int) error {
	if h.dispatcher == nil {
		return types.NewLogicError("dispatch", types.ErrNotSetup)
	}
	return h.dispatcher.Drain(ctx, n)
}

// WaitCmd returns a command that waits for queued events and reports them as
// an eventqueue.EventsReadyMsg. It returns nil before Prepare.
func (h *Handler) WaitCmd(ctx context.Context) tea.Cmd {
	if h.mailbox == nil {
		return nil
	}
	return h.mailbox.WaitCmd(ctx, h.job.ID)
}

// Generation returns the generation of the current mailbox, or 0 before
// Prepare. EventsReadyMsg values carrying another generation are stale.
func (h *Handler) Generation() uint64 {
	if h.mailbox == nil {
		return 0
	}
	return h.mailbox.Gen()
}

// HandleReady dispatches the events announced by msg. Messages from a
// mailbox retired by Reset or Reload are ignored.
func (h *Handler) HandleReady(ctx context.Context, msg eventqueue.EventsReadyMsg) error {
	if h.mailbox == nil || msg.Gen != h.mailbox.Gen() {
		return nil
	}
	return h.Drain(ctx, msg.Count)
}

// Pump is the headless run loop. It dispatches events as they arrive and
// returns nil once the job has reached a terminal state and every event has
// been dispatched, or the context error on cancellation.
func (h *Handler) Pump(ctx context.Context) error {
	if h.dispatcher == nil {
		return types.NewLogicError("pump", types.ErrNotSetup)
	}
	for {
		if h.state.IsTerminal() && h.mailbox.Pending() == 0 && h.queue.Size() == 0 {
			return nil
		}
		n, err := h.mailbox.Wait(ctx)
		if errors.Is(err, eventqueue.ErrMailboxClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := h.dispatcher.Drain(ctx, n); err != nil {
			return err
		}
	}
}

// Close halts the runner, waits for it, dispatches the events it left behind
// and releases the pipeline. The handler must be prepared again before reuse.
func (h *Handler) Close() error {
	if h.runner == nil {
		return nil
	}
	if err := h.runner.Halt(); err != nil {
		h.logger.Warn(log.CatJob, "halt failed", "job", h.job.ID, "error", err)
	}
	h.runner.Wait()
	h.runner = nil

	h.mailbox.Close()
	var err error
	if h.mailbox.Pending() > 0 {
		n, waitErr := h.mailbox.Wait(context.Background())
		if waitErr == nil {
			err = h.dispatcher.Drain(context.Background(), n)
		}
	}

	h.queue = nil
	h.dispatcher = nil
	h.logger.Debug(log.CatJob, "closed", "job", h.job.ID, "status", h.job.Status())
	return err
}

// Job returns the presentation job.
func (h *Handler) Job() *model.JobItem {
	return h.job
}

// Procedure returns the procedure being run.
func (h *Handler) Procedure() *engine.Procedure {
	return h.proc
}

// JobStatus returns the job status string.
func (h *Handler) JobStatus() string {
	return h.job.Status()
}

// State returns the last dispatched job state.
func (h *Handler) State() event.JobState {
	return h.state
}

// InstructionStatus returns the status of the item itemID.
func (h *Handler) InstructionStatus(itemID string) (string, bool) {
	item, ok := h.job.FindInstruction(itemID)
	if !ok {
		return "", false
	}
	return item.Status(), true
}

// Log returns the job log.
func (h *Handler) Log() *model.JobLog {
	return h.job.Log
}

// NextLeaves returns the instructions the engine announced it will run next.
func (h *Handler) NextLeaves() []*model.InstructionItem {
	return h.nextLeaves
}

// QueueSize returns the number of undispatched events.
func (h *Handler) QueueSize() int {
	if h.queue == nil {
		return 0
	}
	return h.queue.Size()
}

// Dispatcher returns the current dispatcher, or nil before Prepare.
func (h *Handler) Dispatcher() *dispatcher.Dispatcher {
	return h.dispatcher
}

// Notifications subscribes to presentation changes for the lifetime of ctx.
func (h *Handler) Notifications(ctx context.Context) <-chan pubsub.Event[model.Change] {
	return h.job.Changes(ctx)
}

// =============================================================================
// Callbacks
// =============================================================================

func (h *Handler) callbacks() dispatcher.CallbackTable {
	return dispatcher.CallbackTable{
		OnInstructionStatus: h.onInstructionStatus,
		OnVariableUpdated:   h.onVariableUpdated,
		OnJobState:          h.onJobState,
		OnLog:               h.onLog,
		OnNextLeaves:        h.onNextLeaves,
		OnBreakpointHit:     h.onBreakpointHit,
	}
}

func (h *Handler) lookup(kind event.Kind, ref event.InstructionRef) (*model.InstructionItem, bool) {
	item, ok := h.byRef[ref]
	if !ok {
		h.diag.LookupMiss(kind, strconv.FormatUint(uint64(ref), 10))
	}
	return item, ok
}

func (h *Handler) onInstructionStatus(_ context.Context, ev event.InstructionStatusChanged) {
	item, ok := h.lookup(event.KindInstructionStatusChanged, ev.Ref)
	if !ok {
		return
	}
	item.SetStatus(ev.Status.String())
}

func (h *Handler) onVariableUpdated(_ context.Context, ev event.VariableUpdated) {
	v, ok := h.job.Variable(ev.Name)
	if !ok {
		h.diag.LookupMiss(event.KindVariableUpdated, ev.Name)
		return
	}
	if !ev.Connected && isEmptyValue(ev.Value) {
		v.SetAvailable(false)
		return
	}
	v.SetValue(ev.Value)
	v.SetAvailable(ev.Connected)
}

func (h *Handler) onJobState(ctx context.Context, ev event.JobStateChanged) {
	h.state = ev.State
	h.job.SetStatus(ev.State.String())
	if h.hit != nil && ev.State != event.JobPaused {
		h.hit.SetBreakpoint(model.BreakpointSet)
		h.hit = nil
	}
	h.logger.Debug(log.CatJob, "job state changed", "job", h.job.ID, "state", ev.State.String())

	if ss, ok := h.sink.(StatusSink); ok {
		if err := ss.RecordStatus(ctx, h.job); err != nil {
			h.logger.ErrorErr(log.CatJob, "recording job status", err, "job", h.job.ID)
		}
	}
}

func (h *Handler) onLog(ctx context.Context, ev event.LogEvent) {
	h.appendLog(ctx, ev.Severity, ev.Source, ev.Message)
}

func (h *Handler) onNextLeaves(_ context.Context, ev event.NextLeavesChanged) {
	items := make([]*model.InstructionItem, 0, len(ev.Refs))
	ids := make([]string, 0, len(ev.Refs))
	for _, ref := range ev.Refs {
		item, ok := h.lookup(event.KindNextLeavesChanged, ref)
		if !ok {
			continue
		}
		items = append(items, item)
		ids = append(ids, item.ID)
	}
	h.nextLeaves = items
	h.job.Notify(model.Change{Kind: model.NextLeavesChanged, ItemIDs: ids})
}

func (h *Handler) onBreakpointHit(ctx context.Context, ev event.BreakpointHit) {
	item, ok := h.lookup(event.KindBreakpointHit, ev.Ref)
	if !ok {
		return
	}
	item.SetBreakpoint(model.BreakpointHit)
	h.hit = item
	h.state = event.JobPaused
	h.job.SetStatus(event.JobPaused.String())
	h.appendLog(ctx, event.SeverityInfo, "jobmon", fmt.Sprintf("breakpoint hit at %s (%d)", item.DisplayName(), item.Ref))
}

func (h *Handler) appendLog(ctx context.Context, sev event.Severity, source, message string) {
	rec := h.job.Log.Append(model.LogRecord{
		Time:     h.now(),
		Severity: sev,
		Source:   source,
		Message:  message,
	})
	if h.sink != nil {
		if err := h.sink.AppendLog(ctx, h.job, rec); err != nil {
			h.logger.ErrorErr(log.CatJob, "mirroring log record", err, "job", h.job.ID)
		}
	}
	h.job.Notify(model.Change{Kind: model.LogChanged, LogSize: h.job.Log.Size()})
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
