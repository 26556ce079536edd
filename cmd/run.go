package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/oactree/jobmon/internal/cachemanager"
	"github.com/oactree/jobmon/internal/engine"
	"github.com/oactree/jobmon/internal/log"
	"github.com/oactree/jobmon/internal/monitor"
	"github.com/oactree/jobmon/internal/tracing"
	"github.com/oactree/jobmon/internal/watcher"
)

var runCmd = &cobra.Command{
	Use:   "run <procedure.yaml>",
	Short: "Run a procedure in the terminal monitor",
	Long: `Run a procedure in the terminal monitor.

Keys:
  s start   p pause   n step   x stop   r reset
  b toggle breakpoint on the selected instruction
  d toggle the debug log (with --debug)
  j/k or arrows select, q quit`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := newSession(ctx, cfg, path, cfg.Engine.LeafDelay)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := s.Close(closeCtx); err != nil {
			log.ErrorErr(log.CatJob, "closing session", err)
		}
	}()

	job := s.handler.Job()
	ctx, span := tracing.StartJobSpan(ctx, s.tracing.Tracer(), job)

	opts := []monitor.Option{
		monitor.WithLogLines(cfg.UI.LogLines),
		monitor.WithQueueGauge(s.metrics.ObserveQueue),
	}
	if l := log.NewListener(ctx); l != nil {
		opts = append(opts, monitor.WithDebugLog(l))
	}
	if cfg.Watch.Enabled {
		w, err := startWatcher(path)
		if err != nil {
			log.ErrorErr(log.CatWatcher, "procedure watcher unavailable, reload disabled", err, "path", path)
		} else {
			defer func() { _ = w.Stop() }()
			opts = append(opts, monitor.WithReload(w, newProcedureCache()))
		}
	}

	p := tea.NewProgram(monitor.New(ctx, s.handler, opts...), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		tracing.EndJobSpan(span, job, err)
		return fmt.Errorf("running monitor: %w", err)
	}

	var pipelineErr error
	if m, ok := final.(monitor.Model); ok {
		pipelineErr = m.Err()
	}
	tracing.EndJobSpan(span, job, pipelineErr)
	return pipelineErr
}

func startWatcher(path string) (*watcher.Watcher, error) {
	w, err := watcher.New(watcher.Config{Path: path, Debounce: cfg.Watch.Debounce})
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return w, nil
}

func newProcedureCache() *monitor.ProcedureCache {
	return cachemanager.NewReadThroughCache[string, *engine.Procedure](
		cachemanager.NewInMemoryCacheManager[string, *engine.Procedure](
			"procedures", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		func(_ context.Context, path string) (*engine.Procedure, error) {
			return engine.LoadProcedure(path)
		},
		cachemanager.DefaultExpiration,
	)
}
