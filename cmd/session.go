package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oactree/jobmon/internal/config"
	"github.com/oactree/jobmon/internal/dispatcher"
	"github.com/oactree/jobmon/internal/engine"
	"github.com/oactree/jobmon/internal/engine/local"
	"github.com/oactree/jobmon/internal/httpapi"
	"github.com/oactree/jobmon/internal/jobs"
	"github.com/oactree/jobmon/internal/log"
	"github.com/oactree/jobmon/internal/metrics"
	"github.com/oactree/jobmon/internal/model"
	"github.com/oactree/jobmon/internal/store/sqlite"
	"github.com/oactree/jobmon/internal/tracing"
)

// session wires one job and the services around its pipeline.
type session struct {
	cfg      config.Config
	handler  *jobs.Handler
	metrics  *metrics.Metrics
	tracing  *tracing.Provider
	store    *sqlite.Store
	server   *httpapi.Server
	shutdown []func(context.Context) error
}

// newSession loads the procedure at path and prepares a handler for it.
// leafDelay paces the local engine.
func newSession(ctx context.Context, c config.Config, path string, leafDelay time.Duration) (_ *session, err error) {
	proc, err := engine.LoadProcedure(path)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: c, metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = s.Close(context.Background())
		}
	}()

	s.tracing, err = tracing.NewProvider(c.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	s.shutdown = append(s.shutdown, s.tracing.Shutdown)

	logger := log.Default()
	mw := []dispatcher.Middleware{
		s.metrics.Middleware(),
		dispatcher.NewSlowDispatchMiddleware(dispatcher.SlowDispatchConfig{
			Threshold: c.UI.SlowDispatchThreshold,
			Logger:    logger,
		}),
		dispatcher.NewLoggingMiddleware(logger),
	}
	if s.tracing.Enabled() {
		mw = append([]dispatcher.Middleware{tracing.NewDispatchMiddleware(s.tracing.Tracer())}, mw...)
	}

	opts := []jobs.Option{
		jobs.WithLogger(logger),
		jobs.WithMiddleware(mw...),
		jobs.WithDiagnostics(s.metrics.Diagnostics(jobs.NewLogDiagnostics(logger, jobs.DefaultMissWindow))),
	}

	if c.Store.Enabled {
		s.store, err = sqlite.Open(c.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening job history: %w", err)
		}
		s.shutdown = append(s.shutdown, func(context.Context) error { return s.store.Close() })
		opts = append(opts, jobs.WithLogSink(s.store))
	}

	if c.Metrics.Enabled {
		s.server = httpapi.NewServer(c.Metrics.Addr, s.metrics.Handler())
		if err := s.server.Start(ctx); err != nil {
			return nil, err
		}
		s.shutdown = append(s.shutdown, s.server.Shutdown)
	}

	factory := local.Factory(local.WithLogger(logger), local.WithLeafDelay(leafDelay))
	s.handler, err = jobs.NewHandler(model.NewJobItem(proc.Name, path), proc, factory, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.handler.Prepare(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the handler first so its final events still reach the
// store, then the services in reverse order of creation.
func (s *session) Close(ctx context.Context) error {
	var errs []error
	if s.handler != nil {
		errs = append(errs, s.handler.Close())
	}
	for i := len(s.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, s.shutdown[i](ctx))
	}
	return errors.Join(errs...)
}
