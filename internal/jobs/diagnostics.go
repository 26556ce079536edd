package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/oactree/jobmon/internal/cachemanager"
	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/log"
)

// DefaultMissWindow is how long an identical lookup-miss warning is suppressed.
const DefaultMissWindow = time.Minute

// Diagnostics receives reports about events that could not be applied.
// key is the instruction ref or variable name that failed to resolve.
type Diagnostics interface {
	LookupMiss(kind event.Kind, key string)
}

// DiagnosticsFunc adapts a function to Diagnostics.
type DiagnosticsFunc func(kind event.Kind, key string)

// LookupMiss calls f.
func (f DiagnosticsFunc) LookupMiss(kind event.Kind, key string) {
	f(kind, key)
}

// LogDiagnostics writes lookup misses to a logger, at most once per key and
// window.
type LogDiagnostics struct {
	logger     *log.Logger
	seen       cachemanager.CacheManager[string, struct{}]
	window     time.Duration
	suppressed atomic.Int64
}

// NewLogDiagnostics creates a LogDiagnostics. A nil logger discards output.
func NewLogDiagnostics(logger *log.Logger, window time.Duration) *LogDiagnostics {
	if window <= 0 {
		window = DefaultMissWindow
	}
	return &LogDiagnostics{
		logger: logger,
		seen:   cachemanager.NewInMemoryCacheManager[string, struct{}]("lookup-miss", window, 2*window),
		window: window,
	}
}

// LookupMiss logs a warning unless the same miss was logged within the window.
func (d *LogDiagnostics) LookupMiss(kind event.Kind, key string) {
	if !d.seen.Add(context.Background(), kind.String()+":"+key, struct{}{}, d.window) {
		d.suppressed.Add(1)
		return
	}
	d.logger.Warn(log.CatJob, "lookup miss, update dropped", "kind", kind.String(), "key", key)
}

// Suppressed returns how many repeated warnings were not logged.
func (d *LogDiagnostics) Suppressed() int64 {
	return d.suppressed.Load()
}
