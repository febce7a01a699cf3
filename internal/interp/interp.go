// Package interp is a tree-walking evaluator for flow-graph programs.
//
// It runs ordinary functions, and it runs single portal iterations on behalf
// of the control-transfer protocol: RunIteration executes the extracted
// portal function until the iteration ends and reports how it ended as a
// transfer.Signal. Compiled units and the trace recorder reuse the same
// evaluator through Hooks, which see every quasi-immutable read in the
// portal frame.
package interp

import (
	"errors"
	"fmt"

	"github.com/funvibe/portaljit/internal/diagnostics"
	"github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/quasi"
)

// DefaultMaxDepth bounds guest call depth.
const DefaultMaxDepth = 1000

// PortalRunner is the consumer of the RunPortal intrinsic.
type PortalRunner interface {
	Call(portal string, args []object.Value) (object.Value, error)
}

// Stats counts interpreter activity.
type Stats struct {
	Calls         int
	Iterations    int
	Invalidations int
}

type Interpreter struct {
	prog     *flowgraph.Program
	registry *quasi.Registry
	portals  PortalRunner
	entries  map[string]string
	stats    Stats
	depth    int
	MaxDepth int
}

// New creates an interpreter for prog. Invalidation statements report to
// registry, which may be nil for programs that were never rewritten.
func New(prog *flowgraph.Program, registry *quasi.Registry) *Interpreter {
	return &Interpreter{
		prog:     prog,
		registry: registry,
		entries:  make(map[string]string),
		MaxDepth: DefaultMaxDepth,
	}
}

func (in *Interpreter) SetPortalRunner(r PortalRunner) { in.portals = r }

// SetEntries installs the map from entry function to portal name used to
// turn `return f(...)` in a portal frame into a nested portal transfer.
func (in *Interpreter) SetEntries(entries map[string]string) {
	in.entries = make(map[string]string, len(entries))
	for fn, p := range entries {
		in.entries[fn] = p
	}
}

func (in *Interpreter) Program() *flowgraph.Program { return in.prog }

func (in *Interpreter) Stats() Stats { return in.stats }

// Call runs the named function to completion. A guest exception that
// escapes it is returned as *object.Raised.
func (in *Interpreter) Call(name string, args []object.Value) (object.Value, error) {
	fn, ok := in.prog.Functions[name]
	if !ok {
		return nil, newRuntimeError(name, "undefined function")
	}
	return in.callFunction(fn, args)
}

func (in *Interpreter) callFunction(fn *flowgraph.Function, args []object.Value) (object.Value, error) {
	if len(args) != len(fn.Params) {
		return nil, newRuntimeError(fn.Name, "expects %d arguments, got %d", len(fn.Params), len(args))
	}
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > in.MaxDepth {
		return nil, newRuntimeError(fn.Name, "call depth exceeds %d", in.MaxDepth)
	}
	in.stats.Calls++

	f := newFrame(fn, args, nil)
	fl, err := in.execBlock(f, fn.Body)
	if err != nil {
		return nil, err
	}
	switch fl {
	case flowNext:
		return object.NIL, nil
	case flowReturn:
		if f.ret == nil {
			return object.NIL, nil
		}
		return f.ret, nil
	case flowPortal:
		return nil, newRuntimeError(fn.Name, "portal continuation outside a portal iteration")
	default:
		return nil, newRuntimeError(fn.Name, "%s outside a loop", fl)
	}
}

type flow int

const (
	flowNext flow = iota
	flowBreak
	flowContinue
	flowReturn
	flowPortal
)

func (fl flow) String() string {
	switch fl {
	case flowBreak:
		return "break"
	case flowContinue:
		return "continue"
	case flowReturn:
		return "return"
	case flowPortal:
		return "portal continuation"
	}
	return "next"
}

// frame is one function activation. Only the frame started by RunIteration
// has hooks; callee frames always read live values.
type frame struct {
	fn     *flowgraph.Function
	locals map[string]object.Value
	hooks  Hooks
	portal bool

	ret        object.Value
	portalArgs []object.Value
	nested     *nestedTransfer

	// tries counts the Try bodies being executed. A tail transfer would
	// leave them before the callee runs, so calls under a Try stay calls.
	tries int
}

type nestedTransfer struct {
	portal string
	args   []object.Value
}

func newFrame(fn *flowgraph.Function, args []object.Value, hooks Hooks) *frame {
	f := &frame{
		fn:     fn,
		locals: make(map[string]object.Value, len(fn.Params)),
		hooks:  hooks,
	}
	for i, p := range fn.Params {
		f.locals[p] = args[i]
	}
	return f
}

func (f *frame) barrier() {
	if f.hooks != nil {
		f.hooks.Barrier()
	}
}

// RuntimeError is an internal fault in guest code: a type mismatch, an
// unknown name, a malformed program. Guest exceptions are *object.Raised.
type RuntimeError struct {
	Func    string
	Message string
}

func newRuntimeError(fn string, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Func: fn, Message: fmt.Sprintf(format, args...)}
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error in %s: %s", e.Func, e.Message)
}

// Is lets errors.Is(err, diagnostics.Code(diagnostics.ErrR001)) match.
func (e *RuntimeError) Is(target error) bool {
	var d *diagnostics.DiagnosticError
	return errors.As(target, &d) && d.Code == diagnostics.ErrR001 && d.Where == "" && d.Message == ""
}
