package rewrite

import (
	"github.com/funvibe/portaljit/internal/flowgraph"
)

// instrument inserts an invalidation after every write that may hit a
// monitored location. Field writes are instrumented when the field name is
// quasi-immutable in any type, since the static type of the target is
// unknown. Every element write is instrumented. It returns the new block and
// the number of invalidations inserted.
func (rw *Rewriter) instrument(stmts []flowgraph.Stmt, quasiFields map[string]bool) ([]flowgraph.Stmt, int) {
	out := make([]flowgraph.Stmt, 0, len(stmts))
	count := 0
	for _, s := range stmts {
		switch s := s.(type) {
		case *flowgraph.SetField:
			if !quasiFields[s.Field] {
				out = append(out, s)
				continue
			}
			obj, binds := rw.once(s.Obj)
			out = append(out, binds...)
			out = append(out,
				&flowgraph.SetField{Obj: obj, Field: s.Field, Value: s.Value},
				&flowgraph.InvalidateField{Obj: flowgraph.CloneExpr(obj), Field: s.Field},
			)
			count++

		case *flowgraph.SetItem:
			seq, binds := rw.once(s.Seq)
			idx, more := rw.once(s.Index)
			out = append(out, binds...)
			out = append(out, more...)
			out = append(out,
				&flowgraph.SetItem{Seq: seq, Index: idx, Value: s.Value},
				&flowgraph.InvalidateItem{Seq: flowgraph.CloneExpr(seq), Index: flowgraph.CloneExpr(idx)},
			)
			count++

		case *flowgraph.If:
			var a, b int
			s.Then, a = rw.instrument(s.Then, quasiFields)
			s.Else, b = rw.instrument(s.Else, quasiFields)
			out = append(out, s)
			count += a + b

		case *flowgraph.While:
			var n int
			s.Body, n = rw.instrument(s.Body, quasiFields)
			out = append(out, s)
			count += n

		case *flowgraph.Try:
			var a, b int
			s.Body, a = rw.instrument(s.Body, quasiFields)
			s.Handler, b = rw.instrument(s.Handler, quasiFields)
			out = append(out, s)
			count += a + b

		default:
			out = append(out, s)
		}
	}
	return out, count
}

// once returns an expression that is safe to evaluate twice, plus the
// assignments needed to make it so.
func (rw *Rewriter) once(e flowgraph.Expr) (flowgraph.Expr, []flowgraph.Stmt) {
	switch e.(type) {
	case *flowgraph.Local, *flowgraph.Const:
		return e, nil
	}
	tmp := rw.newTemp()
	return &flowgraph.Local{Name: tmp}, []flowgraph.Stmt{&flowgraph.Assign{Name: tmp, Value: e}}
}
