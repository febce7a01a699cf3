package flowgraph

// WalkStmts calls fn for every statement in stmts, depth first, including
// statements nested in If, While and Try. Returning false from fn skips the
// children of that statement.
func WalkStmts(stmts []Stmt, fn func(Stmt) bool) {
	for _, s := range stmts {
		if !fn(s) {
			continue
		}
		switch s := s.(type) {
		case *If:
			WalkStmts(s.Then, fn)
			WalkStmts(s.Else, fn)
		case *While:
			WalkStmts(s.Body, fn)
		case *Try:
			WalkStmts(s.Body, fn)
			WalkStmts(s.Handler, fn)
		}
	}
}

// WalkExpr calls fn for e and every sub-expression.
func WalkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case *BinOp:
		WalkExpr(e.Left, fn)
		WalkExpr(e.Right, fn)
	case *Not:
		WalkExpr(e.X, fn)
	case *GetField:
		WalkExpr(e.Obj, fn)
	case *GetItem:
		WalkExpr(e.Seq, fn)
		WalkExpr(e.Index, fn)
	case *Len:
		WalkExpr(e.Seq, fn)
	case *Call:
		for _, a := range e.Args {
			WalkExpr(a, fn)
		}
	case *New:
		for _, f := range e.Fields {
			WalkExpr(f.Value, fn)
		}
	case *NewList:
		for _, it := range e.Items {
			WalkExpr(it, fn)
		}
	case *RunPortal:
		for _, a := range e.Args {
			WalkExpr(a, fn)
		}
	}
}

// StmtExprs returns the expressions a statement evaluates directly (not
// those of nested statements).
func StmtExprs(s Stmt) []Expr {
	switch s := s.(type) {
	case *Assign:
		return []Expr{s.Value}
	case *SetField:
		return []Expr{s.Obj, s.Value}
	case *SetItem:
		return []Expr{s.Seq, s.Index, s.Value}
	case *ExprStmt:
		return []Expr{s.X}
	case *If:
		return []Expr{s.Cond}
	case *While:
		return []Expr{s.Cond}
	case *Return:
		if s.Value != nil {
			return []Expr{s.Value}
		}
	case *Raise:
		return []Expr{s.Value}
	case *InvalidateField:
		return []Expr{s.Obj}
	case *InvalidateItem:
		return []Expr{s.Seq, s.Index}
	case *ContinuePortal:
		out := make([]Expr, len(s.Args))
		for i, a := range s.Args {
			out[i] = &Local{Name: a}
		}
		return out
	}
	return nil
}

// ExprUses returns the locals read by e, in first-use order.
func ExprUses(e Expr) []string {
	var out []string
	seen := make(map[string]bool)
	WalkExpr(e, func(x Expr) {
		if l, ok := x.(*Local); ok && !seen[l.Name] {
			seen[l.Name] = true
			out = append(out, l.Name)
		}
	})
	return out
}

// CallsIn returns the names of functions called anywhere in stmts.
func CallsIn(stmts []Stmt) map[string]bool {
	out := make(map[string]bool)
	WalkStmts(stmts, func(s Stmt) bool {
		for _, e := range StmtExprs(s) {
			WalkExpr(e, func(x Expr) {
				if c, ok := x.(*Call); ok {
					out[c.Func] = true
				}
			})
		}
		return true
	})
	return out
}
