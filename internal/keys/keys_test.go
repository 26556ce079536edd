package keys

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestMonitor_KeyAssignments(t *testing.T) {
	tests := []struct {
		name     string
		binding  key.Binding
		expected []string
	}{
		{"Up uses k and up", Monitor.Up, []string{"k", "up"}},
		{"Down uses j and down", Monitor.Down, []string{"j", "down"}},
		{"Start uses s", Monitor.Start, []string{"s"}},
		{"Pause uses p", Monitor.Pause, []string{"p"}},
		{"Step uses n", Monitor.Step, []string{"n"}},
		{"Stop uses x", Monitor.Stop, []string{"x"}},
		{"Reset uses r", Monitor.Reset, []string{"r"}},
		{"Breakpoint uses b", Monitor.Breakpoint, []string{"b"}},
		{"DebugLog uses d", Monitor.DebugLog, []string{"d"}},
		{"Quit uses q and ctrl+c", Monitor.Quit, []string{"q", "ctrl+c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.binding.Keys())
			require.NotEmpty(t, tt.binding.Help().Desc)
		})
	}
}

func TestMonitor_MatchesKeyMsg(t *testing.T) {
	require.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}}, Monitor.Step))
	require.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyCtrlC}, Monitor.Quit))
	require.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyDown}, Monitor.Down))
	require.False(t, key.Matches(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}}, Monitor.Start))
}

func TestMonitor_NoDuplicateKeys(t *testing.T) {
	seen := map[string]string{}
	for _, group := range Monitor.FullHelp() {
		for _, b := range group {
			for _, k := range b.Keys() {
				prev, dup := seen[k]
				require.False(t, dup, "key %q bound to both %q and %q", k, prev, b.Help().Desc)
				seen[k] = b.Help().Desc
			}
		}
	}
}
