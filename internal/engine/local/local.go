// Package local is an in-process engine that interprets a procedure tree on
// its own goroutine, one leaf at a time.
package local

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oactree/jobmon/internal/engine"
	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/log"
	"github.com/oactree/jobmon/internal/types"
)

var errHalted = errors.New("halted")

type mode int

const (
	modeIdle mode = iota
	modeRun
	modeStep
	modePaused
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for engine diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithLeafDelay inserts a pause before every leaf, so interactive runs are
// observable.
func WithLeafDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.leafDelay = d
	}
}

// Engine runs one procedure. It implements engine.Runner.
//
// State transitions are reported while holding the engine mutex, so the
// Observer must not call back into the Engine. Observer methods may be
// called from the caller's goroutine as well as the engine goroutine.
type Engine struct {
	proc   *engine.Procedure
	obs    engine.Observer
	logger *log.Logger

	leafDelay time.Duration

	mu          sync.Mutex
	cond        *sync.Cond
	mode        mode
	pauseReq    bool
	started     bool
	halted      bool
	finished    bool
	resumeRef   event.InstructionRef
	breakpoints map[event.InstructionRef]bool
	haltCh      chan struct{}
	wg          sync.WaitGroup

	// Owned by the run goroutine.
	values    map[string]any
	connected map[string]bool
}

var _ engine.Runner = (*Engine)(nil)

// New creates an idle engine for p reporting to obs.
func New(p *engine.Procedure, obs engine.Observer, opts ...Option) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("local engine: %w", types.ErrInvalidProcedure)
	}
	if obs == nil {
		return nil, types.NewLogicError("local engine", types.ErrNilProducer)
	}
	e := &Engine{
		proc:        p,
		obs:         obs,
		breakpoints: make(map[event.InstructionRef]bool),
		haltCh:      make(chan struct{}),
		values:      make(map[string]any),
		connected:   make(map[string]bool),
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Factory returns an engine.Factory producing local engines.
func Factory(opts ...Option) engine.Factory {
	return func(p *engine.Procedure, obs engine.Observer) (engine.Runner, error) {
		return New(p, obs, opts...)
	}
}

// Start runs continuously from the current position.
func (e *Engine) Start() error {
	return e.resume(modeRun, event.JobRunning)
}

// Step runs one leaf and then pauses.
func (e *Engine) Step() error {
	return e.resume(modeStep, event.JobStepping)
}

func (e *Engine) resume(m mode, state event.JobState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished || e.halted {
		return types.ErrJobFinished
	}
	if e.mode == m {
		e.pauseReq = false
		return nil
	}
	e.mode = m
	e.pauseReq = false
	e.obs.JobStateChanged(state)
	e.logger.Debug(log.CatEngine, "resumed", "procedure", e.proc.Name, "state", state.String())

	if !e.started {
		e.started = true
		e.wg.Add(1)
		go e.run()
		return nil
	}
	e.cond.Broadcast()
	return nil
}

// Pause stops before the next leaf. It is a no-op when idle or already paused.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished || e.halted {
		return types.ErrJobFinished
	}
	if e.mode == modeRun || e.mode == modeStep {
		e.pauseReq = true
	}
	return nil
}

// Halt stops execution. The engine reports Halted once it has unwound.
// Halting a finished engine is a no-op.
func (e *Engine) Halt() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished || e.halted {
		return nil
	}
	e.halted = true
	close(e.haltCh)
	e.cond.Broadcast()
	if !e.started {
		e.finished = true
		e.obs.JobStateChanged(event.JobHalted)
	}
	return nil
}

// SetBreakpoint sets or clears a breakpoint on any instruction. A breakpoint
// on a composite pauses before the composite starts.
func (e *Engine) SetBreakpoint(ref event.InstructionRef, on bool) error {
	if _, ok := e.proc.Instruction(ref); !ok {
		return fmt.Errorf("ref %d: %w", ref, types.ErrUnknownInstruction)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if on {
		e.breakpoints[ref] = true
	} else {
		delete(e.breakpoints, ref)
	}
	return nil
}

// Wait blocks until the engine goroutine has exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) run() {
	defer e.wg.Done()

	for _, v := range e.proc.Variables {
		e.values[v.Name] = v.Value
		e.connected[v.Name] = true
		e.obs.VariableUpdated(v.Name, v.Value, true)
	}

	ok := true
	var err error
	for _, in := range e.proc.Instructions {
		ok, err = e.exec(in)
		if err != nil || !ok {
			break
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = true
	e.mode = modeIdle
	switch {
	case err != nil:
		e.obs.JobStateChanged(event.JobHalted)
	case ok:
		e.obs.JobStateChanged(event.JobSucceeded)
	default:
		e.obs.JobStateChanged(event.JobFailed)
	}
	e.logger.Debug(log.CatEngine, "finished", "procedure", e.proc.Name, "ok", ok, "halted", err != nil)
}

func (e *Engine) exec(in *engine.Instruction) (bool, error) {
	if in.IsLeaf() {
		return e.execLeaf(in)
	}

	if err := e.gate(in.Ref, false); err != nil {
		return false, err
	}
	e.obs.InstructionStatusChanged(in.Ref, event.StatusRunning)
	ok, err := e.execComposite(in)
	if err != nil {
		e.obs.InstructionStatusChanged(in.Ref, event.StatusNotFinished)
		return false, err
	}
	e.obs.InstructionStatusChanged(in.Ref, statusFor(ok))
	return ok, nil
}

func (e *Engine) execComposite(in *engine.Instruction) (bool, error) {
	switch in.Type {
	case engine.TypeSequence:
		for _, c := range in.Children {
			ok, err := e.exec(c)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case engine.TypeFallback:
		for _, c := range in.Children {
			ok, err := e.exec(c)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case engine.TypeInverter:
		ok, err := e.exec(in.Children[0])
		return !ok, err
	default:
		return false, fmt.Errorf("%w: %q", types.ErrInvalidProcedure, in.Type)
	}
}

func (e *Engine) execLeaf(in *engine.Instruction) (bool, error) {
	if e.leafDelay > 0 {
		if err := e.sleep(e.leafDelay); err != nil {
			return false, err
		}
	}
	if err := e.gate(in.Ref, true); err != nil {
		return false, err
	}

	e.obs.InstructionStatusChanged(in.Ref, event.StatusRunning)
	ok, err := e.perform(in)
	if err != nil {
		e.obs.InstructionStatusChanged(in.Ref, event.StatusNotFinished)
		return false, err
	}
	e.obs.InstructionStatusChanged(in.Ref, statusFor(ok))
	e.afterLeaf()
	return ok, nil
}

func (e *Engine) perform(in *engine.Instruction) (bool, error) {
	source := in.DisplayName()
	switch in.Type {
	case engine.TypeWait:
		return true, e.sleep(in.Timeout)
	case engine.TypeMessage:
		e.obs.Log(event.SeverityInfo, source, in.Text)
		return true, nil
	case engine.TypeLog:
		e.obs.Log(in.LogSeverity(), source, in.Text)
		return true, nil
	case engine.TypeCopy:
		if !e.connected[in.Input] {
			e.obs.Log(event.SeverityError, source, fmt.Sprintf("variable %q is not available", in.Input))
			return false, nil
		}
		v := e.values[in.Input]
		e.values[in.Output] = v
		e.connected[in.Output] = true
		e.obs.VariableUpdated(in.Output, v, true)
		return true, nil
	case engine.TypeSucceed:
		return true, nil
	case engine.TypeFail:
		return false, nil
	case engine.TypeDisconnect:
		e.connected[in.Variable] = false
		e.obs.VariableUpdated(in.Variable, nil, false)
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q", types.ErrInvalidProcedure, in.Type)
	}
}

// gate blocks until ref may run. Composites only stop on breakpoints;
// pause requests and next-leaf reporting apply to leaves.
func (e *Engine) gate(ref event.InstructionRef, leaf bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.halted {
			return errHalted
		}
		if e.mode == modePaused {
			e.cond.Wait()
			continue
		}
		if e.breakpoints[ref] && e.resumeRef != ref {
			e.resumeRef = ref
			e.mode = modePaused
			e.obs.NextLeavesChanged([]event.InstructionRef{ref})
			e.obs.BreakpointHit(ref)
			e.obs.JobStateChanged(event.JobPaused)
			continue
		}
		if leaf && e.pauseReq {
			e.pauseReq = false
			e.mode = modePaused
			e.obs.JobStateChanged(event.JobPaused)
			continue
		}
		break
	}
	e.resumeRef = 0
	if leaf {
		e.obs.NextLeavesChanged([]event.InstructionRef{ref})
	}
	return nil
}

func (e *Engine) afterLeaf() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == modeStep && !e.halted {
		e.mode = modePaused
		e.pauseReq = false
		e.obs.JobStateChanged(event.JobPaused)
	}
}

func (e *Engine) sleep(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-e.haltCh:
		return errHalted
	}
}

func statusFor(ok bool) event.InstructionStatus {
	if ok {
		return event.StatusSuccess
	}
	return event.StatusFailure
}
