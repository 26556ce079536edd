// Package log provides structured logging for jobmon.
// It writes leveled, categorised key=value lines to a file (via tea.LogToFile
// when running under Bubble Tea) and fans every entry out on a pub/sub broker
// so the monitor can tail its own diagnostics.
// Logging is off unless --debug or JOBMON_DEBUG enables it.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oactree/jobmon/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug", "":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelDebug, fmt.Errorf("unknown log level %q", s)
	}
}

// Category groups related log messages.
type Category string

const (
	CatQueue    Category = "queue"    // Event queue push/pop
	CatDispatch Category = "dispatch" // Dispatcher routing
	CatJob      Category = "job"      // Job handler lifecycle and callbacks
	CatEngine   Category = "engine"   // Local execution engine
	CatConfig   Category = "config"   // Configuration loading/saving
	CatStore    Category = "store"    // Job history persistence
	CatWatcher  Category = "watcher"  // Procedure file watcher
	CatHTTP     Category = "http"     // Metrics endpoint
	CatUI       Category = "ui"       // Monitor updates
	CatCache    Category = "cache"    // cache operations
)

// Logger provides structured logging.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	writer   io.Writer
	enabled  bool
	minLevel Level
	now      func() time.Time
	broker   *pubsub.Broker[string] // Pub/sub for log events
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// New creates a standalone logger writing to w.
// Used where a logger is injected rather than taken from the package default.
func New(w io.Writer) *Logger {
	return &Logger{
		writer:   w,
		enabled:  true,
		minLevel: LevelDebug,
		now:      time.Now,
		broker:   pubsub.NewBroker[string](),
	}
}

// Default returns the package logger, or nil when Init was never called.
func Default() *Logger {
	return defaultLogger
}

// Init initializes the global logger.
// Returns a cleanup function to close the log file.
func Init(path string) (func(), error) {
	var initErr error
	once.Do(func() {
		defaultLogger, initErr = newFileLogger(path)
	})
	if initErr != nil {
		return nil, initErr
	}
	// Check if logger was initialized (handles case where once.Do already ran)
	if defaultLogger == nil {
		return nil, fmt.Errorf("logger initialization failed or already attempted")
	}
	return func() {
		if defaultLogger != nil && defaultLogger.file != nil {
			_ = defaultLogger.file.Close()
		}
	}, nil
}

// InitWithTeaLog uses tea.LogToFile for initialization.
func InitWithTeaLog(path string, prefix string) (func(), error) {
	f, err := tea.LogToFile(path, prefix)
	if err != nil {
		return nil, err
	}

	l := New(f)
	l.file = f
	defaultLogger = l

	return func() { _ = f.Close() }, nil
}

func newFileLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G304: path is user-controlled debug log path
	if err != nil {
		return nil, err
	}

	l := New(f)
	l.file = f
	return l, nil
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if defaultLogger != nil {
		defaultLogger.SetEnabled(enabled)
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if defaultLogger != nil {
		defaultLogger.SetMinLevel(level)
	}
}

// SetEnabled toggles this logger on/off.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// SetMinLevel sets the minimum level this logger writes.
func (l *Logger) SetMinLevel(level Level) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	defaultLogger.Log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	defaultLogger.Log(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	defaultLogger.Log(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	defaultLogger.Log(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	defaultLogger.Log(LevelError, cat, msg, withErr(fields, err)...)
}

// Warn logs at warning level on this logger.
func (l *Logger) Warn(cat Category, msg string, fields ...any) {
	l.Log(LevelWarn, cat, msg, fields...)
}

// Debug logs at debug level on this logger.
func (l *Logger) Debug(cat Category, msg string, fields ...any) {
	l.Log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level on this logger.
func (l *Logger) Info(cat Category, msg string, fields ...any) {
	l.Log(LevelInfo, cat, msg, fields...)
}

// ErrorErr logs err at error level on this logger.
func (l *Logger) ErrorErr(cat Category, msg string, err error, fields ...any) {
	l.Log(LevelError, cat, msg, withErr(fields, err)...)
}

func withErr(fields []any, err error) []any {
	if err != nil {
		return append(fields, "error", err.Error())
	}
	return append(fields, "error", "<nil>")
}

// Log writes one entry. A nil logger is a no-op.
func (l *Logger) Log(level Level, cat Category, msg string, fields ...any) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || level < l.minLevel {
		return
	}

	// Format: 2025-12-06T10:45:00 [ERROR] [job] message key=value key2=value2
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", l.now().Format("2006-01-02T15:04:05"), level, cat, msg)

	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	// Handle odd field count - append orphan key with no value
	if len(fields)%2 != 0 {
		fmt.Fprintf(&b, " %v=<missing>", fields[len(fields)-1])
	}
	b.WriteByte('\n')
	entry := b.String()

	if l.writer != nil {
		_, _ = io.WriteString(l.writer, entry)
	}

	// Publish event to subscribers (non-blocking)
	if l.broker != nil {
		l.broker.Publish(pubsub.CreatedEvent, entry)
	}
}

// LogListener wraps a continuous listener for log events.
type LogListener = pubsub.ContinuousListener[string]

// NewListener creates a new log event listener on the default logger, or
// returns nil when logging was never initialized. The listener is
// automatically cleaned up when the context is cancelled.
func NewListener(ctx context.Context) *LogListener {
	if defaultLogger == nil || defaultLogger.broker == nil {
		return nil
	}
	return pubsub.NewContinuousListener[string](ctx, defaultLogger)
}

// Subscribe returns a channel of formatted entries written to this logger.
func (l *Logger) Subscribe(ctx context.Context) <-chan pubsub.Event[string] {
	return l.broker.Subscribe(ctx)
}
