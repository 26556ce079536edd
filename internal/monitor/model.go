// Package monitor implements the terminal monitor for a single job. Its Update
// loop is the consumer side of the event pipeline: every EventsReadyMsg is
// dispatched here, on the bubbletea goroutine, before the next one is awaited.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/oactree/jobmon/internal/cachemanager"
	"github.com/oactree/jobmon/internal/engine"
	"github.com/oactree/jobmon/internal/eventqueue"
	"github.com/oactree/jobmon/internal/jobs"
	"github.com/oactree/jobmon/internal/keys"
	"github.com/oactree/jobmon/internal/log"
	"github.com/oactree/jobmon/internal/model"
	"github.com/oactree/jobmon/internal/pubsub"
	"github.com/oactree/jobmon/internal/types"
)

// DefaultLogLines is the height of the log pane.
const DefaultLogLines = 8

// maxDebugLines bounds the debug log kept in memory.
const maxDebugLines = 200

// ProcedureCache loads procedures by path.
type ProcedureCache = cachemanager.ReadThroughCache[string, *engine.Procedure]

// Option configures a Model.
type Option func(*Model)

// WithLogLines sets the height of the log pane.
func WithLogLines(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.logLines = n
		}
	}
}

// WithReload reloads the procedure whenever sub publishes its path.
func WithReload(sub pubsub.Subscriber[string], procs *ProcedureCache) Option {
	return func(m *Model) {
		m.reloadSub = sub
		m.procs = procs
	}
}

// WithQueueGauge reports the queue depth after each batch is dispatched.
func WithQueueGauge(fn func(depth int)) Option {
	return func(m *Model) {
		m.queueGauge = fn
	}
}

// WithDebugLog shows entries from the process logger, toggled with the
// debug log key. A nil listener leaves the pane empty.
func WithDebugLog(l *log.LogListener) Option {
	return func(m *Model) {
		m.debugLog = l
	}
}

// debugLogMsg carries one formatted logger entry.
type debugLogMsg string

// Model is the monitor state.
type Model struct {
	ctx     context.Context
	handler *jobs.Handler
	keys    keys.KeyMap
	help    help.Model
	logView viewport.Model

	reloadSub  pubsub.Subscriber[string]
	procs      *ProcedureCache
	reloads    *pubsub.ContinuousListener[string]
	queueGauge func(int)

	debugLog   *log.LogListener
	debugLines []string
	showDebug  bool

	selected int
	logLines int
	width    int
	height   int

	// err is a broken-pipeline error. Dispatching stops until reset.
	err    error
	notice string
}

// New creates a monitor for a prepared handler.
func New(ctx context.Context, h *jobs.Handler, opts ...Option) Model {
	m := Model{
		ctx:      ctx,
		handler:  h,
		keys:     keys.DefaultKeyMap(),
		help:     help.New(),
		logLines: DefaultLogLines,
		width:    80,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.logView = viewport.New(m.width, m.logLines)
	if m.reloadSub != nil {
		m.reloads = pubsub.NewContinuousListener[string](ctx, m.reloadSub)
	}
	m.refreshLog()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.handler.WaitCmd(m.ctx)}
	if m.reloads != nil {
		cmds = append(cmds, m.reloads.Listen())
	}
	if m.debugLog != nil {
		cmds = append(cmds, m.listenDebug())
	}
	return tea.Batch(cmds...)
}

// Err returns the error that stopped dispatching, if any.
func (m Model) Err() error {
	return m.err
}

// Handler returns the monitored job handler.
func (m Model) Handler() *jobs.Handler {
	return m.handler
}

// Selected returns the selected instruction item, or nil.
func (m Model) Selected() *model.InstructionItem {
	items := m.handler.Job().Flatten()
	if m.selected < 0 || m.selected >= len(items) {
		return nil
	}
	return items[m.selected]
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventqueue.EventsReadyMsg:
		return m.handleReady(msg)

	case pubsub.Event[string]:
		return m.handleReload(msg)

	case debugLogMsg:
		m.debugLines = append(m.debugLines, strings.TrimRight(string(msg), "\n"))
		if n := len(m.debugLines); n > maxDebugLines {
			m.debugLines = m.debugLines[n-maxDebugLines:]
		}
		if m.showDebug {
			m.refreshLog()
		}
		return m, m.listenDebug()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.logView.Width = msg.Width
		m.refreshLog()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleReady(msg eventqueue.EventsReadyMsg) (tea.Model, tea.Cmd) {
	// A retired mailbox already has no waiter; re-arming here would double up.
	if msg.Gen != m.handler.Generation() {
		return m, nil
	}
	if m.err != nil {
		return m, nil
	}
	if err := m.handler.HandleReady(m.ctx, msg); err != nil {
		m.err = err
		log.ErrorErr(log.CatUI, "dispatch failed, pipeline stopped", err, "job", msg.JobID)
		return m, nil
	}
	if m.queueGauge != nil {
		m.queueGauge(m.handler.QueueSize())
	}
	m.refreshLog()
	return m, m.handler.WaitCmd(m.ctx)
}

func (m Model) handleReload(ev pubsub.Event[string]) (tea.Model, tea.Cmd) {
	if m.procs == nil || m.reloads == nil {
		return m, nil
	}
	path := ev.Payload
	m.procs.Invalidate(m.ctx, path)
	p, err := m.procs.Get(m.ctx, path)
	if err != nil {
		m.notice = fmt.Sprintf("reload failed: %v", err)
		log.ErrorErr(log.CatUI, "procedure reload failed", err, "path", path)
		return m, m.reloads.Listen()
	}
	if err := m.handler.Reload(p); err != nil {
		m.notice = fmt.Sprintf("reload failed: %v", err)
		log.ErrorErr(log.CatUI, "procedure reload failed", err, "path", path)
		return m, m.reloads.Listen()
	}
	m.resetView("procedure reloaded")
	return m, tea.Batch(m.handler.WaitCmd(m.ctx), m.reloads.Listen())
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.handler.Job().Flatten())-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Start):
		m.control("start", m.handler.Start)
	case key.Matches(msg, m.keys.Pause):
		m.control("pause", m.handler.Pause)
	case key.Matches(msg, m.keys.Step):
		m.control("step", m.handler.Step)
	case key.Matches(msg, m.keys.Stop):
		m.control("stop", m.handler.Stop)

	case key.Matches(msg, m.keys.Reset):
		if err := m.handler.Reset(); err != nil {
			m.notice = fmt.Sprintf("reset failed: %v", err)
			return m, nil
		}
		m.resetView("")
		return m, m.handler.WaitCmd(m.ctx)

	case key.Matches(msg, m.keys.Breakpoint):
		item := m.Selected()
		if item == nil {
			return m, nil
		}
		on := item.Breakpoint() == model.BreakpointNone
		if err := m.handler.SetBreakpoint(item.ID, on); err != nil {
			m.notice = fmt.Sprintf("breakpoint: %v", err)
		}

	case key.Matches(msg, m.keys.DebugLog):
		m.showDebug = !m.showDebug
		m.refreshLog()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// control runs a lifecycle operation, surfacing its error as a notice.
func (m *Model) control(name string, op func() error) {
	m.notice = ""
	if err := op(); err != nil {
		if errors.Is(err, types.ErrJobFinished) {
			m.notice = "job finished, press r to reset"
			return
		}
		m.notice = fmt.Sprintf("%s failed: %v", name, err)
		log.ErrorErr(log.CatUI, "job control failed", err, "op", name)
	}
}

func (m *Model) resetView(notice string) {
	m.err = nil
	m.notice = notice
	if n := len(m.handler.Job().Flatten()); m.selected >= n {
		m.selected = max(n-1, 0)
	}
	m.refreshLog()
}

func (m *Model) refreshLog() {
	if m.showDebug {
		m.logView.SetContent(renderDebugLog(m.debugLines, m.width))
	} else {
		m.logView.SetContent(renderLog(m.handler.Log().Records(), m.width))
	}
	m.logView.GotoBottom()
}

// listenDebug waits for the next logger entry. Entries are rewrapped so they
// are not mistaken for procedure reloads.
func (m Model) listenDebug() tea.Cmd {
	if m.debugLog == nil {
		return nil
	}
	listen := m.debugLog.Listen()
	return func() tea.Msg {
		ev, ok := listen().(pubsub.Event[string])
		if !ok {
			return nil
		}
		return debugLogMsg(ev.Payload)
	}
}
