// Package testutil builds procedures for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oactree/jobmon/internal/engine"
)

// Builder accumulates a procedure and validates it on Build.
type Builder struct {
	t    *testing.T
	proc engine.Procedure
}

// NewBuilder starts a procedure called name.
func NewBuilder(t *testing.T, name string) *Builder {
	t.Helper()
	return &Builder{t: t, proc: engine.Procedure{Name: name}}
}

// WithVariable declares a workspace variable.
func (b *Builder) WithVariable(name, typ string, value any) *Builder {
	b.proc.Variables = append(b.proc.Variables, engine.Variable{Name: name, Type: typ, Value: value})
	return b
}

// WithRoot adds a top-level instruction.
func (b *Builder) WithRoot(in *engine.Instruction) *Builder {
	b.proc.Instructions = append(b.proc.Instructions, in)
	return b
}

// YAML renders the procedure as a procedure file.
func (b *Builder) YAML() []byte {
	b.t.Helper()
	data, err := yaml.Marshal(&b.proc)
	require.NoError(b.t, err)
	return data
}

// Build renders and re-parses the procedure so refs are assigned and the
// result is validated exactly like a loaded file.
func (b *Builder) Build() *engine.Procedure {
	b.t.Helper()
	p, err := engine.ParseProcedure(b.YAML())
	require.NoError(b.t, err)
	return p
}

// WriteFile writes the procedure into a temporary directory and returns its path.
func (b *Builder) WriteFile() string {
	b.t.Helper()
	path := filepath.Join(b.t.TempDir(), b.proc.Name+".yaml")
	require.NoError(b.t, os.WriteFile(path, b.YAML(), 0o600))
	return path
}
