package log

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedLogger(buf *bytes.Buffer) *Logger {
	l := New(buf)
	l.now = func() time.Time { return time.Date(2025, 12, 6, 10, 45, 0, 0, time.UTC) }
	return l
}

func TestLogger_FormatsFields(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf)

	l.Warn(CatJob, "lookup miss", "kind", "instruction_status_changed", "ref", 7)

	require.Equal(t,
		"2025-12-06T10:45:00 [WARN] [job] lookup miss kind=instruction_status_changed ref=7\n",
		buf.String())
}

func TestLogger_OddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf)

	l.Debug(CatQueue, "push", "size")
	require.Contains(t, buf.String(), "size=<missing>")
}

func TestLogger_MinLevelAndDisable(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf)

	l.SetMinLevel(LevelWarn)
	l.Debug(CatQueue, "hidden")
	require.Empty(t, buf.String())

	l.Warn(CatQueue, "shown")
	require.Contains(t, buf.String(), "shown")

	buf.Reset()
	l.SetEnabled(false)
	l.Warn(CatQueue, "muted")
	require.Empty(t, buf.String())
}

func TestLogger_NilIsNoop(t *testing.T) {
	var l *Logger
	require.NotPanics(t, func() { l.Log(LevelError, CatJob, "nothing") })
}

func TestLogger_PublishesEntries(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := l.Subscribe(ctx)

	l.Warn(CatDispatch, "slow callback")

	select {
	case ev := <-ch:
		require.Contains(t, ev.Payload, "slow callback")
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for log event")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":        LevelDebug,
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestNewFileLogger_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	l, err := newFileLogger(path)
	require.NoError(t, err)
	l.Warn(CatConfig, "first")
	require.NoError(t, l.file.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[WARN] [config] first")
}
