package flowgraph

import (
	"fmt"
	"sort"
	"strings"
)

// Dump renders a program as indented pseudo-code, functions in name order.
func Dump(p *Program) string {
	var sb strings.Builder
	for _, name := range sortedTypeNames(p) {
		td := p.Types[name]
		fmt.Fprintf(&sb, "type %s [%s]\n", td.Name, strings.Join(td.Annotations, ", "))
	}
	for _, name := range p.FunctionNames() {
		sb.WriteString(DumpFunction(p.Functions[name]))
	}
	return sb.String()
}

// DumpFunction renders a single function.
func DumpFunction(fn *Function) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s(%s):\n", fn.Name, strings.Join(fn.Params, ", "))
	dumpStmts(&sb, fn.Body, 1)
	return sb.String()
}

func sortedTypeNames(p *Program) []string {
	names := make([]string, 0, len(p.Types))
	for n := range p.Types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func dumpStmts(sb *strings.Builder, stmts []Stmt, depth int) {
	if len(stmts) == 0 {
		indent(sb, depth)
		sb.WriteString("pass\n")
		return
	}
	for _, s := range stmts {
		dumpStmt(sb, s, depth)
	}
}

func indent(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("    ", depth))
}

func dumpStmt(sb *strings.Builder, s Stmt, depth int) {
	indent(sb, depth)
	switch s := s.(type) {
	case *Assign:
		fmt.Fprintf(sb, "%s = %s\n", s.Name, ExprString(s.Value))
	case *SetField:
		fmt.Fprintf(sb, "%s.%s = %s\n", ExprString(s.Obj), s.Field, ExprString(s.Value))
	case *SetItem:
		fmt.Fprintf(sb, "%s[%s] = %s\n", ExprString(s.Seq), ExprString(s.Index), ExprString(s.Value))
	case *ExprStmt:
		fmt.Fprintf(sb, "%s\n", ExprString(s.X))
	case *If:
		fmt.Fprintf(sb, "if %s:\n", ExprString(s.Cond))
		dumpStmts(sb, s.Then, depth+1)
		if len(s.Else) > 0 {
			indent(sb, depth)
			sb.WriteString("else:\n")
			dumpStmts(sb, s.Else, depth+1)
		}
	case *While:
		if s.HotLoop != "" {
			fmt.Fprintf(sb, "while %s:  # merge point %s\n", ExprString(s.Cond), s.HotLoop)
		} else {
			fmt.Fprintf(sb, "while %s:\n", ExprString(s.Cond))
		}
		dumpStmts(sb, s.Body, depth+1)
	case *Break:
		sb.WriteString("break\n")
	case *Continue:
		sb.WriteString("continue\n")
	case *Return:
		if s.Value == nil {
			sb.WriteString("return\n")
		} else {
			fmt.Fprintf(sb, "return %s\n", ExprString(s.Value))
		}
	case *Raise:
		fmt.Fprintf(sb, "raise %s\n", ExprString(s.Value))
	case *Try:
		sb.WriteString("try:\n")
		dumpStmts(sb, s.Body, depth+1)
		indent(sb, depth)
		fmt.Fprintf(sb, "except as %s:\n", s.Catch)
		dumpStmts(sb, s.Handler, depth+1)
	case *InvalidateField:
		fmt.Fprintf(sb, "invalidate %s.%s\n", ExprString(s.Obj), s.Field)
	case *InvalidateItem:
		fmt.Fprintf(sb, "invalidate %s[%s]\n", ExprString(s.Seq), ExprString(s.Index))
	case *ContinuePortal:
		fmt.Fprintf(sb, "continue_portal(%s)\n", strings.Join(s.Args, ", "))
	default:
		fmt.Fprintf(sb, "<%T>\n", s)
	}
}

// ExprString renders an expression on one line.
func ExprString(e Expr) string {
	switch e := e.(type) {
	case nil:
		return "<nil>"
	case *Const:
		return e.Value.Inspect()
	case *Local:
		return e.Name
	case *BinOp:
		return fmt.Sprintf("(%s %s %s)", ExprString(e.Left), e.Op, ExprString(e.Right))
	case *Not:
		return "not " + ExprString(e.X)
	case *GetField:
		return ExprString(e.Obj) + "." + e.Field
	case *GetItem:
		return fmt.Sprintf("%s[%s]", ExprString(e.Seq), ExprString(e.Index))
	case *Len:
		return fmt.Sprintf("len(%s)", ExprString(e.Seq))
	case *Call:
		return fmt.Sprintf("%s(%s)", e.Func, exprList(e.Args))
	case *New:
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Name + "=" + ExprString(f.Value)
		}
		return fmt.Sprintf("%s{%s}", e.TypeName, strings.Join(parts, ", "))
	case *NewList:
		return "[" + exprList(e.Items) + "]"
	case *RunPortal:
		return fmt.Sprintf("run_portal[%s](%s)", e.Portal, exprList(e.Args))
	}
	return fmt.Sprintf("<%T>", e)
}

func exprList(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}
