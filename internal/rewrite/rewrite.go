// Package rewrite is the build-time graph rewriter. It extracts every hot
// loop into a portal function, generates the runner that hands the portal
// to the control-transfer protocol, and instruments writes to
// quasi-immutable fields with invalidation statements.
package rewrite

import (
	"io"
	"log/slog"
	"sort"
	"strconv"

	"github.com/funvibe/portaljit/internal/config"
	"github.com/funvibe/portaljit/internal/diagnostics"
	"github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/portal"
)

// Portal describes what was generated for one descriptor.
type Portal struct {
	Descriptor *portal.Descriptor
	Function   string // extracted portal function
	Runner     string // generated runner
	Enclosing  string // function the loop was taken from
	Live       []string
}

// Result is the output of one rewrite.
type Result struct {
	Program *flowgraph.Program
	Portals map[string]*Portal

	// Entries maps every function whose call is equivalent to entering a
	// portal with the same arguments to that portal's name.
	Entries map[string]string

	Invalidations int
	Temps         int
}

// PortalNames returns the descriptor names in sorted order.
func (r *Result) PortalNames() []string {
	names := make([]string, 0, len(r.Portals))
	for n := range r.Portals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type Rewriter struct {
	log   *slog.Logger
	temps int
}

func New(log *slog.Logger) *Rewriter {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Rewriter{log: log}
}

type boundary struct {
	fn    *flowgraph.Function
	index int // position in fn.Body, -1 when nested
	loop  *flowgraph.While
}

// Rewrite validates descs against prog and returns the rewritten program.
// prog itself is left untouched. All errors are *diagnostics.DiagnosticError
// with a B-code.
func (rw *Rewriter) Rewrite(prog *flowgraph.Program, descs []*portal.Descriptor) (*Result, error) {
	rw.temps = 0
	byName := make(map[string]*portal.Descriptor, len(descs))
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[d.Name]; dup {
			return nil, diagnostics.NewError(diagnostics.ErrB005, d.Name, "portal declared twice")
		}
		byName[d.Name] = d
	}
	if len(descs) > 1 {
		for _, d := range descs {
			if !d.Recursive {
				return nil, diagnostics.NewError(diagnostics.ErrB003, d.Name,
					"%d portals in the program but this one is not declared recursive", len(descs))
			}
		}
	}

	bounds, err := findBoundaries(prog, byName)
	if err != nil {
		return nil, err
	}
	for _, d := range descs {
		switch found := bounds[d.Name]; {
		case len(found) == 0:
			return nil, diagnostics.NewError(diagnostics.ErrB002, d.Name, "no loop is marked as the hot loop of this portal")
		case len(found) > 1:
			return nil, diagnostics.NewError(diagnostics.ErrB001, d.Name,
				"hot loop marked %d times (in %s and %s)", len(found), found[0].fn.Name, found[1].fn.Name)
		case found[0].index < 0:
			return nil, diagnostics.NewError(diagnostics.ErrB002, found[0].fn.Name,
				"hot loop of %s must be a top-level statement of the function", d.Name)
		}
	}

	out := prog.Copy()
	res := &Result{
		Program: out,
		Portals: make(map[string]*Portal, len(descs)),
		Entries: make(map[string]string),
	}
	for _, d := range descs {
		p, err := rw.extract(out, d)
		if err != nil {
			return nil, err
		}
		res.Portals[d.Name] = p
		res.Entries[p.Runner] = d.Name
		if enc := out.Functions[p.Enclosing]; isEntry(enc, p, d) {
			res.Entries[enc.Name] = d.Name
		}
	}

	quasiFields := out.QuasiFieldNames()
	for _, name := range out.FunctionNames() {
		fn := out.Functions[name]
		var n int
		fn.Body, n = rw.instrument(fn.Body, quasiFields)
		res.Invalidations += n
	}
	res.Temps = rw.temps

	rw.log.Info("rewrite complete", "portals", len(res.Portals),
		"invalidations", res.Invalidations, "temps", res.Temps)
	return res, nil
}

// findBoundaries collects every marked loop, top-level or not.
func findBoundaries(prog *flowgraph.Program, descs map[string]*portal.Descriptor) (map[string][]boundary, error) {
	found := make(map[string][]boundary)
	for _, name := range prog.FunctionNames() {
		fn := prog.Functions[name]
		top := make(map[*flowgraph.While]int)
		for i, s := range fn.Body {
			if w, ok := s.(*flowgraph.While); ok {
				top[w] = i
			}
		}
		var err error
		flowgraph.WalkStmts(fn.Body, func(s flowgraph.Stmt) bool {
			w, ok := s.(*flowgraph.While)
			if !ok || w.HotLoop == "" || err != nil {
				return err == nil
			}
			if _, known := descs[w.HotLoop]; !known {
				err = diagnostics.NewError(diagnostics.ErrB005, fn.Name, "loop marked for unknown portal %q", w.HotLoop)
				return false
			}
			idx, isTop := top[w]
			if !isTop {
				idx = -1
			}
			found[w.HotLoop] = append(found[w.HotLoop], boundary{fn: fn, index: idx, loop: w})
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return found, nil
}

// locate finds the boundary of d in the program being rewritten.
func locate(prog *flowgraph.Program, d *portal.Descriptor) (boundary, bool) {
	for _, name := range prog.FunctionNames() {
		fn := prog.Functions[name]
		for i, s := range fn.Body {
			if w, ok := s.(*flowgraph.While); ok && w.HotLoop == d.Name {
				return boundary{fn: fn, index: i, loop: w}, true
			}
		}
	}
	return boundary{}, false
}

func (rw *Rewriter) extract(prog *flowgraph.Program, d *portal.Descriptor) (*Portal, error) {
	b, ok := locate(prog, d)
	if !ok {
		return nil, diagnostics.NewError(diagnostics.ErrB002, d.Name, "hot loop is no longer a top-level statement")
	}
	fn := b.fn

	locals := assignedIn(fn)
	for _, n := range d.Params() {
		if !locals.has(n) {
			return nil, diagnostics.NewError(diagnostics.ErrB004, fn.Name,
				"portal %s declares %q, which is not a local of the function", d.Name, n)
		}
	}
	bound := boundBefore(fn, b.index)
	for _, n := range d.Params() {
		if !bound.has(n) {
			return nil, diagnostics.NewError(diagnostics.ErrB004, fn.Name,
				"portal %s declares %q, which is not bound on every path to the hot loop", d.Name, n)
		}
	}
	live := liveAtHeads(fn)[b.loop]
	declared := varSet{}
	declared.add(d.Params()...)
	for _, n := range live.sorted() {
		if !declared.has(n) {
			return nil, diagnostics.NewError(diagnostics.ErrB004, fn.Name,
				"%q is live at the hot loop of %s but is neither green nor red", n, d.Name)
		}
	}

	portalName := config.PortalName(d.Name)
	runnerName := config.RunnerName(d.Name)
	for _, n := range []string{portalName, runnerName} {
		if _, clash := prog.Functions[n]; clash {
			return nil, diagnostics.NewError(diagnostics.ErrB005, d.Name, "generated function %s already exists", n)
		}
	}

	params := d.Params()
	loop := &flowgraph.While{
		Cond:    b.loop.Cond,
		Body:    append(continueToPortal(b.loop.Body, params), &flowgraph.ContinuePortal{Args: params}),
		HotLoop: d.Name,
	}
	portalBody := append([]flowgraph.Stmt{loop}, fn.Body[b.index+1:]...)
	prog.Functions[portalName] = &flowgraph.Function{Name: portalName, Params: params, Body: portalBody}

	args := make([]flowgraph.Expr, len(params))
	for i, n := range params {
		args[i] = &flowgraph.Local{Name: n}
	}
	run := &flowgraph.RunPortal{Portal: d.Name, Args: args}
	var runnerBody []flowgraph.Stmt
	if d.Result == portal.ResultVoid {
		runnerBody = []flowgraph.Stmt{&flowgraph.ExprStmt{X: run}, &flowgraph.Return{}}
	} else {
		runnerBody = []flowgraph.Stmt{&flowgraph.Return{Value: run}}
	}
	prog.Functions[runnerName] = &flowgraph.Function{Name: runnerName, Params: params, Body: runnerBody}

	callArgs := make([]flowgraph.Expr, len(params))
	for i, n := range params {
		callArgs[i] = &flowgraph.Local{Name: n}
	}
	call := &flowgraph.Call{Func: runnerName, Args: callArgs}
	prefix := fn.Body[:b.index:b.index]
	if d.Result == portal.ResultVoid {
		fn.Body = append(prefix, &flowgraph.ExprStmt{X: call}, &flowgraph.Return{})
	} else {
		fn.Body = append(prefix, &flowgraph.Return{Value: call})
	}

	rw.log.Debug("extracted portal", "portal", d.Name, "function", fn.Name,
		"greens", len(d.Greens), "reds", len(d.Reds), "live", len(live))
	return &Portal{
		Descriptor: d,
		Function:   portalName,
		Runner:     runnerName,
		Enclosing:  fn.Name,
		Live:       live.sorted(),
	}, nil
}

// continueToPortal rewrites continue statements aimed at the hot loop.
// Loops nested in the body keep their own continues.
func continueToPortal(stmts []flowgraph.Stmt, params []string) []flowgraph.Stmt {
	out := make([]flowgraph.Stmt, len(stmts))
	for i, s := range stmts {
		switch s := s.(type) {
		case *flowgraph.Continue:
			out[i] = &flowgraph.ContinuePortal{Args: params}
		case *flowgraph.If:
			out[i] = &flowgraph.If{
				Cond: s.Cond,
				Then: continueToPortal(s.Then, params),
				Else: continueToPortal(s.Else, params),
			}
		case *flowgraph.Try:
			out[i] = &flowgraph.Try{
				Body:    continueToPortal(s.Body, params),
				Catch:   s.Catch,
				Handler: continueToPortal(s.Handler, params),
			}
		default:
			out[i] = s
		}
	}
	return out
}

// isEntry reports whether calling enc is the same as entering the portal:
// nothing runs before the loop and the parameters are exactly the portal's.
func isEntry(enc *flowgraph.Function, p *Portal, d *portal.Descriptor) bool {
	if enc == nil || len(enc.Body) == 0 || len(enc.Params) != d.Arity() {
		return false
	}
	for i, n := range d.Params() {
		if enc.Params[i] != n {
			return false
		}
	}
	switch first := enc.Body[0].(type) {
	case *flowgraph.Return:
		c, ok := first.Value.(*flowgraph.Call)
		return ok && c.Func == p.Runner
	case *flowgraph.ExprStmt:
		c, ok := first.X.(*flowgraph.Call)
		return ok && c.Func == p.Runner
	}
	return false
}

func (rw *Rewriter) newTemp() string {
	rw.temps++
	return config.TempPrefix + strconv.Itoa(rw.temps)
}
