package flowgraph

// CloneFunction deep-copies fn. Constants are shared; they are immutable.
func CloneFunction(fn *Function) *Function {
	return &Function{
		Name:   fn.Name,
		Params: append([]string(nil), fn.Params...),
		Body:   CloneStmts(fn.Body),
	}
}

func CloneStmts(stmts []Stmt) []Stmt {
	if stmts == nil {
		return nil
	}
	out := make([]Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = CloneStmt(s)
	}
	return out
}

func CloneStmt(s Stmt) Stmt {
	switch s := s.(type) {
	case *Assign:
		return &Assign{Name: s.Name, Value: CloneExpr(s.Value)}
	case *SetField:
		return &SetField{Obj: CloneExpr(s.Obj), Field: s.Field, Value: CloneExpr(s.Value)}
	case *SetItem:
		return &SetItem{Seq: CloneExpr(s.Seq), Index: CloneExpr(s.Index), Value: CloneExpr(s.Value)}
	case *ExprStmt:
		return &ExprStmt{X: CloneExpr(s.X)}
	case *If:
		return &If{Cond: CloneExpr(s.Cond), Then: CloneStmts(s.Then), Else: CloneStmts(s.Else)}
	case *While:
		return &While{Cond: CloneExpr(s.Cond), Body: CloneStmts(s.Body), HotLoop: s.HotLoop}
	case *Break:
		return &Break{}
	case *Continue:
		return &Continue{}
	case *Return:
		return &Return{Value: CloneExpr(s.Value)}
	case *Raise:
		return &Raise{Value: CloneExpr(s.Value)}
	case *Try:
		return &Try{Body: CloneStmts(s.Body), Catch: s.Catch, Handler: CloneStmts(s.Handler)}
	case *InvalidateField:
		return &InvalidateField{Obj: CloneExpr(s.Obj), Field: s.Field}
	case *InvalidateItem:
		return &InvalidateItem{Seq: CloneExpr(s.Seq), Index: CloneExpr(s.Index)}
	case *ContinuePortal:
		return &ContinuePortal{Args: append([]string(nil), s.Args...)}
	}
	return s
}

func CloneExpr(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *Const:
		return &Const{Value: e.Value}
	case *Local:
		return &Local{Name: e.Name}
	case *BinOp:
		return &BinOp{Op: e.Op, Left: CloneExpr(e.Left), Right: CloneExpr(e.Right)}
	case *Not:
		return &Not{X: CloneExpr(e.X)}
	case *GetField:
		return &GetField{Obj: CloneExpr(e.Obj), Field: e.Field}
	case *GetItem:
		return &GetItem{Seq: CloneExpr(e.Seq), Index: CloneExpr(e.Index)}
	case *Len:
		return &Len{Seq: CloneExpr(e.Seq)}
	case *Call:
		return &Call{Func: e.Func, Args: cloneExprs(e.Args)}
	case *New:
		fields := make([]FieldInit, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = FieldInit{Name: f.Name, Value: CloneExpr(f.Value)}
		}
		return &New{TypeName: e.TypeName, Fields: fields}
	case *NewList:
		return &NewList{Items: cloneExprs(e.Items)}
	case *RunPortal:
		return &RunPortal{Portal: e.Portal, Args: cloneExprs(e.Args)}
	}
	return e
}

func cloneExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = CloneExpr(e)
	}
	return out
}
