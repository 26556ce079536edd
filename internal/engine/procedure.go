package engine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/types"
)

// Instruction types understood by the local engine.
const (
	TypeSequence   = "Sequence"
	TypeFallback   = "Fallback"
	TypeInverter   = "Inverter"
	TypeWait       = "Wait"
	TypeMessage    = "Message"
	TypeLog        = "Log"
	TypeCopy       = "Copy"
	TypeSucceed    = "Succeed"
	TypeFail       = "Fail"
	TypeDisconnect = "Disconnect"
)

var compositeTypes = map[string]bool{
	TypeSequence: true,
	TypeFallback: true,
	TypeInverter: true,
}

var leafTypes = map[string]bool{
	TypeWait:       true,
	TypeMessage:    true,
	TypeLog:        true,
	TypeCopy:       true,
	TypeSucceed:    true,
	TypeFail:       true,
	TypeDisconnect: true,
}

// Variable is a workspace variable declaration.
type Variable struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// Instruction is one node of the procedure tree.
type Instruction struct {
	Ref      event.InstructionRef `yaml:"-"`
	Type     string               `yaml:"type"`
	Name     string               `yaml:"name,omitempty"`
	Text     string               `yaml:"text,omitempty"`
	Severity string               `yaml:"severity,omitempty"`
	Timeout  time.Duration        `yaml:"timeout,omitempty"`
	Input    string               `yaml:"input,omitempty"`
	Output   string               `yaml:"output,omitempty"`
	Variable string               `yaml:"variable,omitempty"`
	Children []*Instruction       `yaml:"children,omitempty"`
}

// IsLeaf reports whether the instruction executes directly.
func (in *Instruction) IsLeaf() bool {
	return leafTypes[in.Type]
}

// DisplayName returns the name, or the type when unnamed.
func (in *Instruction) DisplayName() string {
	if in.Name != "" {
		return in.Name
	}
	return in.Type
}

// Procedure is a parsed, validated procedure file.
type Procedure struct {
	Name         string         `yaml:"name"`
	Variables    []Variable     `yaml:"variables,omitempty"`
	Instructions []*Instruction `yaml:"instructions"`

	// Path is the file the procedure was loaded from, if any.
	Path string `yaml:"-"`

	byRef map[event.InstructionRef]*Instruction
}

// LoadProcedure reads and parses a procedure file.
func LoadProcedure(path string) (*Procedure, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied procedure path
	if err != nil {
		return nil, fmt.Errorf("reading procedure: %w", err)
	}
	p, err := ParseProcedure(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Path = path
	return p, nil
}

// ParseProcedure parses and validates YAML procedure data, assigning refs in
// depth-first pre-order starting at 1.
func ParseProcedure(data []byte) (*Procedure, error) {
	var p Procedure
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidProcedure, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.assignRefs()
	return &p, nil
}

// Walk visits every instruction in depth-first pre-order. Returning false
// from fn skips the instruction's children.
func (p *Procedure) Walk(fn func(in *Instruction, depth int) bool) {
	var visit func(in *Instruction, depth int)
	visit = func(in *Instruction, depth int) {
		if !fn(in, depth) {
			return
		}
		for _, c := range in.Children {
			visit(c, depth+1)
		}
	}
	for _, in := range p.Instructions {
		visit(in, 0)
	}
}

// Instruction returns the instruction with the given ref.
func (p *Procedure) Instruction(ref event.InstructionRef) (*Instruction, bool) {
	in, ok := p.byRef[ref]
	return in, ok
}

// Count returns the number of instructions.
func (p *Procedure) Count() int {
	return len(p.byRef)
}

// Variable returns the declaration of a variable.
func (p *Procedure) Variable(name string) (Variable, bool) {
	for _, v := range p.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Tree renders the instruction tree, one instruction per line.
func (p *Procedure) Tree() string {
	var sb strings.Builder
	p.Walk(func(in *Instruction, depth int) bool {
		fmt.Fprintf(&sb, "%s%d %s", strings.Repeat("  ", depth), in.Ref, in.Type)
		if in.Name != "" {
			fmt.Fprintf(&sb, " %q", in.Name)
		}
		sb.WriteByte('\n')
		return true
	})
	return sb.String()
}

func (p *Procedure) assignRefs() {
	p.byRef = make(map[event.InstructionRef]*Instruction)
	next := event.InstructionRef(1)
	p.Walk(func(in *Instruction, _ int) bool {
		in.Ref = next
		p.byRef[next] = in
		next++
		return true
	})
}

func (p *Procedure) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: procedure name is empty", types.ErrInvalidProcedure)
	}
	if len(p.Instructions) == 0 {
		return fmt.Errorf("%w: procedure has no instructions", types.ErrInvalidProcedure)
	}

	declared := make(map[string]bool, len(p.Variables))
	for i, v := range p.Variables {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("%w: variable %d has an empty name", types.ErrInvalidProcedure, i)
		}
		if declared[v.Name] {
			return fmt.Errorf("%w: variable %q declared twice", types.ErrInvalidProcedure, v.Name)
		}
		declared[v.Name] = true
	}

	var err error
	p.Walk(func(in *Instruction, _ int) bool {
		if err == nil {
			err = validateInstruction(in, declared)
		}
		return err == nil
	})
	return err
}

func validateInstruction(in *Instruction, declared map[string]bool) error {
	switch {
	case compositeTypes[in.Type]:
		if len(in.Children) == 0 {
			return fmt.Errorf("%w: %s %q has no children", types.ErrInvalidProcedure, in.Type, in.Name)
		}
		if in.Type == TypeInverter && len(in.Children) != 1 {
			return fmt.Errorf("%w: Inverter %q needs exactly one child, has %d",
				types.ErrInvalidProcedure, in.Name, len(in.Children))
		}
		return nil
	case leafTypes[in.Type]:
		if len(in.Children) > 0 {
			return fmt.Errorf("%w: %s %q cannot have children", types.ErrInvalidProcedure, in.Type, in.Name)
		}
	case in.Type == "":
		return fmt.Errorf("%w: instruction type is empty", types.ErrInvalidProcedure)
	default:
		return fmt.Errorf("%w: unknown instruction type %q", types.ErrInvalidProcedure, in.Type)
	}

	switch in.Type {
	case TypeWait:
		if in.Timeout < 0 {
			return fmt.Errorf("%w: Wait %q has a negative timeout", types.ErrInvalidProcedure, in.Name)
		}
	case TypeLog:
		if in.Severity != "" {
			if _, err := event.ParseSeverity(strings.ToUpper(in.Severity)); err != nil {
				return fmt.Errorf("%w: %w", types.ErrInvalidProcedure, err)
			}
		}
	case TypeCopy:
		for _, name := range []string{in.Input, in.Output} {
			if !declared[name] {
				return fmt.Errorf("%w: Copy references undeclared variable %q", types.ErrInvalidProcedure, name)
			}
		}
	case TypeDisconnect:
		if !declared[in.Variable] {
			return fmt.Errorf("%w: Disconnect references undeclared variable %q",
				types.ErrInvalidProcedure, in.Variable)
		}
	}
	return nil
}

// LogSeverity returns the severity for a Log instruction, defaulting to Info.
func (in *Instruction) LogSeverity() event.Severity {
	if in.Severity == "" {
		return event.SeverityInfo
	}
	sev, err := event.ParseSeverity(strings.ToUpper(in.Severity))
	if err != nil {
		return event.SeverityInfo
	}
	return sev
}
