package dispatcher

import (
	"context"
	"time"

	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/log"
)

// Handler dispatches a single event.
type Handler func(ctx context.Context, ev event.Event)

// Middleware wraps a Handler to add cross-cutting behavior.
type Middleware func(Handler) Handler

// ChainMiddleware applies middlewares to a handler in reverse order.
// ChainMiddleware(h, a, b) yields a(b(h)).
func ChainMiddleware(handler Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// ===========================================================================
// Logging Middleware
// ===========================================================================

// NewLoggingMiddleware logs each dispatched event at debug level.
func NewLoggingMiddleware(logger *log.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev event.Event) {
			start := time.Now()
			next(ctx, ev)
			logger.Debug(log.CatDispatch, "event dispatched",
				"kind", ev.Kind().String(),
				"duration", time.Since(start),
			)
		}
	}
}

// ===========================================================================
// Slow Dispatch Middleware
// ===========================================================================

// DefaultSlowDispatchThreshold is the callback duration that triggers a warning.
const DefaultSlowDispatchThreshold = 50 * time.Millisecond

// SlowDispatchConfig configures the slow dispatch middleware.
type SlowDispatchConfig struct {
	Threshold time.Duration
	Logger    *log.Logger
	// OnSlow, when set, is called in addition to logging.
	OnSlow func(kind event.Kind, d time.Duration)
}

// NewSlowDispatchMiddleware warns when a callback blocks the UI loop for longer
// than the threshold. It never aborts the callback.
func NewSlowDispatchMiddleware(cfg SlowDispatchConfig) Middleware {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultSlowDispatchThreshold
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, ev event.Event) {
			start := time.Now()
			next(ctx, ev)

			duration := time.Since(start)
			if duration <= threshold {
				return
			}
			cfg.Logger.Warn(log.CatDispatch, "callback exceeded time threshold",
				"kind", ev.Kind().String(),
				"duration", duration,
				"threshold", threshold,
			)
			if cfg.OnSlow != nil {
				cfg.OnSlow(ev.Kind(), duration)
			}
		}
	}
}
