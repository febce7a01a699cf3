// Package samples holds small guest programs that exercise the control
// plane end to end. Each one has a main function whose result is known, so
// the same sample can be run interpreted, compiled, or from the CLI and be
// checked against Want.
package samples

import (
	"fmt"
	"sort"

	"github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/portal"
)

type Sample struct {
	Name        string
	Description string
	Program     *flowgraph.Program
	Portals     []*portal.Descriptor

	// Main is a function without parameters that runs the scenario.
	Main string

	// Want is the Inspect form of Main's result.
	Want string
}

var builders = map[string]func() (*Sample, error){
	"quasisum": QuasiSum,
	"seqread":  SeqRead,
	"outcomes": Outcomes,
	"bytecode": Bytecode,
}

// Names lists the known samples.
func Names() []string {
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build returns a fresh copy of the named sample.
func Build(name string) (*Sample, error) {
	b, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown sample %q (have %v)", name, Names())
	}
	return b()
}

// program collects types and functions, keeping the first error.
type program struct {
	p   *flowgraph.Program
	err error
}

func newProgram() *program { return &program{p: flowgraph.NewProgram()} }

func (b *program) typ(name string, annotations ...string) {
	if b.err != nil {
		return
	}
	_, b.err = b.p.AddType(name, annotations...)
}

func (b *program) fn(fn *flowgraph.Function) {
	if b.err != nil {
		return
	}
	b.err = b.p.AddFunction(fn)
}
