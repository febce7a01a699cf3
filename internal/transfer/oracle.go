package transfer

import (
	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/portal"
)

// Unit is the opaque handle of a compiled unit as seen by the protocol.
type Unit interface {
	Valid() bool
	Label() string
}

// Oracle is the warm-up oracle and compiled-unit store the protocol
// consumes. It decides per invocation whether to interpret, compile, or run
// compiled code, and it runs whichever it picks.
type Oracle interface {
	// ShouldCompile is asked at the merge point when no valid unit exists.
	ShouldCompile(d *portal.Descriptor, greens []object.Value) bool

	// LookupCompiledUnit returns the unit compiled for greens, if any.
	LookupCompiledUnit(d *portal.Descriptor, greens []object.Value) (Unit, bool)

	// RunCompiledUnit runs u until it leaves compiled code.
	RunCompiledUnit(u Unit, reds []object.Value) (Signal, error)

	// RunInterpreted runs one iteration of the portal body.
	RunInterpreted(d *portal.Descriptor, greens, reds []object.Value) (Signal, error)

	// CompileAndRun runs one iteration (two when the portal asks to unroll
	// once) while recording a trace, and commits the trace if it is still
	// valid afterwards.
	CompileAndRun(d *portal.Descriptor, greens, reds []object.Value) (Signal, error)
}
