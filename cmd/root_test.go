package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/oactree/jobmon/internal/config"
	"github.com/oactree/jobmon/internal/store/sqlite"
)

const okProcedure = `
name: demo
instructions:
  - type: Sequence
    children:
      - {type: Message, text: hello}
      - {type: Succeed}
`

const failingProcedure = `
name: broken
instructions:
  - type: Sequence
    children:
      - {type: Log, text: about to fail, severity: warning}
      - {type: Fail}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// withConfig swaps the package config for the duration of a test.
func withConfig(t *testing.T, c config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func testConfig(t *testing.T) config.Config {
	c := config.Defaults()
	c.Store.Enabled = false
	c.Store.Path = filepath.Join(t.TempDir(), "history.db")
	c.Watch.Enabled = false
	c.Engine.LeafDelay = 0
	return c
}

func runCommand(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetContext(context.Background())
	t.Cleanup(func() { c.SetOut(nil) })
	err := c.RunE(c, args)
	return out.String(), err
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", "ui:\n  log_lines: 3\nwatch:\n  debounce: 1s\n")

	c, err := loadConfig(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, 3, c.UI.LogLines)
	require.Equal(t, time.Second, c.Watch.Debounce)
	require.Equal(t, config.Defaults().Metrics.Addr, c.Metrics.Addr)
	require.NoError(t, config.Validate(c))
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "ui:\n  log_lines: 3\n")
	t.Setenv("JOBMON_UI_LOG_LINES", "5")

	c, err := loadConfig(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, 5, c.UI.LogLines)
}

func TestLoadConfig_WrittenDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(path))

	c, err := loadConfig(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, config.Defaults(), c)
}

func TestValidateCommand_PrintsTree(t *testing.T) {
	path := writeFile(t, "demo.yaml", okProcedure)

	out, err := runCommand(t, validateCmd, path)
	require.NoError(t, err)
	require.Contains(t, out, "demo: 3 instructions, 0 variables")
	require.Contains(t, out, "Sequence")
	require.Contains(t, out, "  2 Message")
}

func TestValidateCommand_RejectsInvalid(t *testing.T) {
	path := writeFile(t, "bad.yaml", "name: bad\ninstructions:\n  - type: Teleport\n")

	_, err := runCommand(t, validateCmd, path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Teleport")
}

func TestExecCommand_Succeeds(t *testing.T) {
	withConfig(t, testConfig(t))
	path := writeFile(t, "demo.yaml", okProcedure)

	out, err := runCommand(t, execCmd, path)
	require.NoError(t, err)
	require.Contains(t, out, "INFO")
	require.Contains(t, out, "hello")
	require.Contains(t, out, "demo: Succeeded")
}

func TestExecCommand_FailureExitsNonZero(t *testing.T) {
	withConfig(t, testConfig(t))
	path := writeFile(t, "broken.yaml", failingProcedure)

	out, err := runCommand(t, execCmd, path)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrJobNotSucceeded))
	require.Contains(t, out, "about to fail")
	require.Contains(t, out, "broken: Failed")
}

func TestExecCommand_TimeoutReportsHalted(t *testing.T) {
	withConfig(t, testConfig(t))
	path := writeFile(t, "slow.yaml", `
name: slow
instructions:
  - type: Sequence
    children:
      - {type: Message, text: "waiting"}
      - {type: Wait, timeout: 10s}
`)
	prev := execTimeout
	execTimeout = 100 * time.Millisecond
	t.Cleanup(func() { execTimeout = prev })

	start := time.Now()
	out, err := runCommand(t, execCmd, path)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Less(t, time.Since(start), 5*time.Second)
	require.Contains(t, out, "waiting")
	require.Contains(t, out, "slow: Halted")
}

func TestHistoryCommand_ListsExecutedJobs(t *testing.T) {
	c := testConfig(t)
	c.Store.Enabled = true
	withConfig(t, c)
	path := writeFile(t, "demo.yaml", okProcedure)

	_, err := runCommand(t, execCmd, path)
	require.NoError(t, err)

	out, err := runCommand(t, historyCmd)
	require.NoError(t, err)
	require.Contains(t, out, "demo")
	require.Contains(t, out, "Succeeded")

	store, err := sqlite.Open(c.Store.Path)
	require.NoError(t, err)
	jobs, err := store.ListJobs(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, jobs, 1)

	out, err = runCommand(t, historyCmd, jobs[0].ID)
	require.NoError(t, err)
	require.Contains(t, out, "hello")
}

func TestHistoryCommand_Empty(t *testing.T) {
	c := testConfig(t)
	withConfig(t, c)

	out, err := runCommand(t, historyCmd)
	require.NoError(t, err)
	require.Contains(t, out, "no jobs recorded")
}
