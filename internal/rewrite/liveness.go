package rewrite

import (
	"sort"

	"github.com/funvibe/portaljit/internal/flowgraph"
)

type varSet map[string]struct{}

func (s varSet) add(names ...string) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

func (s varSet) has(n string) bool {
	_, ok := s[n]
	return ok
}

func (s varSet) union(o varSet) varSet {
	out := make(varSet, len(s)+len(o))
	for n := range s {
		out[n] = struct{}{}
	}
	for n := range o {
		out[n] = struct{}{}
	}
	return out
}

func (s varSet) without(n string) varSet {
	out := make(varSet, len(s))
	for k := range s {
		if k != n {
			out[k] = struct{}{}
		}
	}
	return out
}

func (s varSet) equal(o varSet) bool {
	if len(s) != len(o) {
		return false
	}
	for n := range s {
		if !o.has(n) {
			return false
		}
	}
	return true
}

func (s varSet) sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// liveness is a backward may-live analysis over structured statements. It
// records the live-in set at the head of every While it visits.
type liveness struct {
	heads map[*flowgraph.While]varSet
}

// loopCtx carries what break and continue jump to.
type loopCtx struct {
	breakOut   varSet
	continueIn varSet
}

// liveAtHeads runs the analysis over a whole function body.
func liveAtHeads(fn *flowgraph.Function) map[*flowgraph.While]varSet {
	lv := &liveness{heads: make(map[*flowgraph.While]varSet)}
	lv.block(fn.Body, varSet{}, nil)
	return lv.heads
}

func (lv *liveness) block(stmts []flowgraph.Stmt, out varSet, loop *loopCtx) varSet {
	live := out
	for i := len(stmts) - 1; i >= 0; i-- {
		live = lv.stmt(stmts[i], live, loop)
	}
	return live
}

func uses(exprs ...flowgraph.Expr) varSet {
	s := varSet{}
	for _, e := range exprs {
		s.add(flowgraph.ExprUses(e)...)
	}
	return s
}

func (lv *liveness) stmt(s flowgraph.Stmt, out varSet, loop *loopCtx) varSet {
	switch s := s.(type) {
	case *flowgraph.Assign:
		return out.without(s.Name).union(uses(s.Value))

	case *flowgraph.If:
		branches := lv.block(s.Then, out, loop).union(lv.block(s.Else, out, loop))
		return branches.union(uses(s.Cond))

	case *flowgraph.While:
		head := out.union(uses(s.Cond))
		for {
			body := lv.block(s.Body, head, &loopCtx{breakOut: out, continueIn: head})
			next := head.union(body)
			if next.equal(head) {
				break
			}
			head = next
		}
		lv.heads[s] = head
		return head

	case *flowgraph.Break:
		if loop == nil {
			return varSet{}
		}
		return loop.breakOut

	case *flowgraph.Continue:
		if loop == nil {
			return varSet{}
		}
		return loop.continueIn

	case *flowgraph.Return:
		if s.Value == nil {
			return varSet{}
		}
		return uses(s.Value)

	case *flowgraph.Raise:
		return uses(s.Value)

	case *flowgraph.Try:
		// An exception may leave the body anywhere, so whatever the handler
		// needs is treated as live on entry.
		handler := lv.block(s.Handler, out, loop)
		if s.Catch != "" {
			handler = handler.without(s.Catch)
		}
		return lv.block(s.Body, out, loop).union(handler)
	}
	return out.union(uses(flowgraph.StmtExprs(s)...))
}

// assignedIn returns every local a function binds: its parameters, assigned
// names and catch variables.
func assignedIn(fn *flowgraph.Function) varSet {
	s := varSet{}
	s.add(fn.Params...)
	flowgraph.WalkStmts(fn.Body, func(st flowgraph.Stmt) bool {
		switch st := st.(type) {
		case *flowgraph.Assign:
			s.add(st.Name)
		case *flowgraph.Try:
			if st.Catch != "" {
				s.add(st.Catch)
			}
		}
		return true
	})
	return s
}

// boundBefore returns the locals definitely bound when control reaches
// fn.Body[index]: parameters plus names assigned on every path through the
// statements before it.
func boundBefore(fn *flowgraph.Function, index int) varSet {
	s := varSet{}
	s.add(fn.Params...)
	return mustAssign(fn.Body[:index], s)
}

func mustAssign(stmts []flowgraph.Stmt, in varSet) varSet {
	out := in.union(nil)
	for _, st := range stmts {
		switch st := st.(type) {
		case *flowgraph.Assign:
			out.add(st.Name)
		case *flowgraph.If:
			out = intersect(mustAssign(st.Then, out), mustAssign(st.Else, out))
		case *flowgraph.Try:
			handler := out.union(nil)
			if st.Catch != "" {
				handler.add(st.Catch)
			}
			out = intersect(mustAssign(st.Body, out), mustAssign(st.Handler, handler))
		}
	}
	return out
}

func intersect(a, b varSet) varSet {
	out := varSet{}
	for n := range a {
		if b.has(n) {
			out.add(n)
		}
	}
	return out
}
