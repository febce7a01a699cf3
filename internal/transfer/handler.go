package transfer

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/funvibe/portaljit/internal/diagnostics"
	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/portal"
)

// DefaultMaxDepth bounds nested portal activations.
const DefaultMaxDepth = 512

// Stats counts protocol activity since the handler was created.
type Stats struct {
	Signals      [numKinds]int
	Activations  int
	CompiledRuns int
	Compiles     int
	Interpreted  int
	MaxDepth     int
}

// Count returns the number of signals of kind k consumed so far.
func (s Stats) Count(k Kind) int {
	if k < 0 || k >= numKinds {
		return 0
	}
	return s.Signals[k]
}

// Handler is the portal runner loop. It is reentrant: a NestedCall starts an
// independent activation on the same handler. It is not safe for concurrent
// use; the owning session serializes calls.
type Handler struct {
	oracle   Oracle
	portals  map[string]*portal.Descriptor
	log      *slog.Logger
	stats    Stats
	depth    int
	MaxDepth int
}

func NewHandler(oracle Oracle, descs []*portal.Descriptor, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Handler{
		oracle:   oracle,
		portals:  make(map[string]*portal.Descriptor, len(descs)),
		log:      log,
		MaxDepth: DefaultMaxDepth,
	}
	for _, d := range descs {
		h.portals[d.Name] = d
	}
	return h
}

// SetOracle swaps the oracle. Used when the oracle itself needs the handler
// to be constructed first.
func (h *Handler) SetOracle(o Oracle) { h.oracle = o }

// Portal looks up a descriptor by name.
func (h *Handler) Portal(name string) (*portal.Descriptor, bool) {
	d, ok := h.portals[name]
	return d, ok
}

func (h *Handler) Stats() Stats { return h.stats }

// Call enters the portal called name with a full argument vector. It is the
// target of the RunPortal intrinsic in generated runners.
func (h *Handler) Call(name string, args []object.Value) (object.Value, error) {
	d, ok := h.portals[name]
	if !ok {
		return nil, diagnostics.NewError(diagnostics.ErrI001, name, "unknown portal")
	}
	greens, reds, err := d.Split(args)
	if err != nil {
		return nil, diagnostics.Wrap(diagnostics.ErrI001, name, err)
	}
	return h.Run(d, greens, reds)
}

// Run drives one activation of d to completion and returns its result in
// the caller's representation. A guest exception comes back as
// *object.Raised holding the raised value itself.
func (h *Handler) Run(d *portal.Descriptor, greens, reds []object.Value) (object.Value, error) {
	return h.run(d, greens, reds, false)
}

func (h *Handler) run(d *portal.Descriptor, greens, reds []object.Value, interpretOnly bool) (object.Value, error) {
	h.depth++
	defer func() { h.depth-- }()
	if h.depth > h.MaxDepth {
		return nil, diagnostics.NewError(diagnostics.ErrR001, d.Name, "portal nesting deeper than %d", h.MaxDepth)
	}
	if h.depth > h.stats.MaxDepth {
		h.stats.MaxDepth = h.depth
	}
	h.stats.Activations++

	for {
		sig, err := h.step(d, greens, reds, interpretOnly)
		if err != nil {
			return nil, err
		}
		if sig == nil {
			return nil, diagnostics.NewError(diagnostics.ErrI001, d.Name, "iteration produced no signal")
		}
		if k := sig.Kind(); k >= 0 && k < numKinds {
			h.stats.Signals[k]++
		}

		switch s := sig.(type) {
		case *Continue:
			if len(s.Greens) != len(d.Greens) || len(s.Reds) != len(d.Reds) {
				return nil, diagnostics.NewError(diagnostics.ErrI001, d.Name,
					"continue with %d+%d arguments, portal takes %d+%d",
					len(s.Greens), len(s.Reds), len(d.Greens), len(d.Reds))
			}
			greens, reds = s.Greens, s.Reds

		case *Return:
			return convertResult(d, s.Value)

		case *ReturnVoid:
			return convertResult(d, nil)

		case *RaiseObject:
			return nil, &object.Raised{Value: s.Exception}

		case *NestedCall:
			return h.nested(d, s, interpretOnly)

		default:
			return nil, diagnostics.NewError(diagnostics.ErrI001, d.Name, "unexpected signal %s", sig)
		}
	}
}

func (h *Handler) step(d *portal.Descriptor, greens, reds []object.Value, interpretOnly bool) (Signal, error) {
	if !interpretOnly && d.ConfirmEnter(greens, reds) {
		if u, ok := h.oracle.LookupCompiledUnit(d, greens); ok && u.Valid() {
			h.stats.CompiledRuns++
			return h.oracle.RunCompiledUnit(u, reds)
		}
		if h.oracle.ShouldCompile(d, greens) {
			h.stats.Compiles++
			h.log.Debug("compiling", "portal", d.Name, "location", d.Label(greens))
			return h.oracle.CompileAndRun(d, greens, reds)
		}
	}
	h.stats.Interpreted++
	return h.oracle.RunInterpreted(d, greens, reds)
}

// nested runs the callee of a tail transfer and adopts its outcome.
func (h *Handler) nested(caller *portal.Descriptor, s *NestedCall, interpretOnly bool) (object.Value, error) {
	callee, ok := h.portals[s.Portal]
	if !ok {
		return nil, diagnostics.NewError(diagnostics.ErrI001, caller.Name, "nested call to unknown portal %q", s.Portal)
	}
	greens, reds, err := callee.Split(s.Args)
	if err != nil {
		return nil, diagnostics.Wrap(diagnostics.ErrI001, caller.Name, err)
	}
	noCompile := interpretOnly || callee.CanNeverInline(greens)
	h.log.Debug("nested portal call", "portal", caller.Name, "callee", callee.Name,
		"location", callee.Label(greens), "interpret_only", noCompile)

	v, err := h.run(callee, greens, reds, noCompile)
	if err != nil {
		return nil, err
	}
	if callee.Result == portal.ResultVoid {
		return convertResult(caller, nil)
	}
	return convertResult(caller, v)
}

// convertResult maps a value in the JIT's representation to the caller's
// declared result type. A nil v means no value.
func convertResult(d *portal.Descriptor, v object.Value) (object.Value, error) {
	fail := func() (object.Value, error) {
		got := "nothing"
		if v != nil {
			got = string(v.Type())
		}
		return nil, diagnostics.NewError(diagnostics.ErrI002, d.Name, "cannot return %s as %s", got, d.Result)
	}

	switch d.Result {
	case portal.ResultVoid:
		if _, isNil := v.(*object.Nil); v == nil || isNil {
			return object.NIL, nil
		}
		return fail()

	case portal.ResultRef:
		if v == nil {
			return object.NIL, nil
		}
		return v, nil

	case portal.ResultInt:
		switch x := v.(type) {
		case *object.Integer:
			return x, nil
		case *object.Boolean:
			if x.Value {
				return object.NewInt(1), nil
			}
			return object.NewInt(0), nil
		}
		return fail()

	case portal.ResultFloat:
		switch x := v.(type) {
		case *object.Float:
			return x, nil
		case *object.Integer:
			return &object.Float{Value: float64(x.Value)}, nil
		}
		return fail()

	case portal.ResultBool:
		switch x := v.(type) {
		case *object.Boolean:
			return x, nil
		case *object.Integer:
			return object.NativeBool(x.Value != 0), nil
		}
		return fail()
	}
	return nil, diagnostics.NewError(diagnostics.ErrI002, d.Name, "unknown result type %q", d.Result)
}

// String renders the counters for the CLI.
func (s Stats) String() string {
	return fmt.Sprintf("activations=%d compiled=%d compiles=%d interpreted=%d continue=%d return=%d void=%d raise=%d nested=%d depth=%d",
		s.Activations, s.CompiledRuns, s.Compiles, s.Interpreted,
		s.Signals[KindContinue], s.Signals[KindReturn], s.Signals[KindReturnVoid],
		s.Signals[KindRaise], s.Signals[KindNested], s.MaxDepth)
}
