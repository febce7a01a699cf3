// Package flowgraph is the structured flow-graph representation of the
// interpreter that the rewriter consumes and produces.
//
// A program is a set of functions made of structured statements. Hot loops
// are ordinary While statements carrying a HotLoop marker that names their
// portal descriptor. Types declare which of their fields are immutable,
// quasi-immutable scalars ("a?") or quasi-immutable sequences ("lst?[*]").
package flowgraph

import (
	"fmt"
	"sort"

	"github.com/funvibe/portaljit/internal/object"
)

// Node is the base interface for all graph nodes.
type Node interface {
	node()
}

// Stmt is a Node that represents a statement.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is a Node that represents an expression.
type Expr interface {
	Node
	exprNode()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Const is a literal value.
type Const struct {
	Value object.Value
}

// Local reads a local variable or parameter.
type Local struct {
	Name string
}

// BinOp applies a binary operator: + - * / % == != < <= > >= and or.
type BinOp struct {
	Op          string
	Left, Right Expr
}

// Not negates the truthiness of X.
type Not struct {
	X Expr
}

// GetField reads Obj.Field.
type GetField struct {
	Obj   Expr
	Field string
}

// GetItem reads Seq[Index].
type GetItem struct {
	Seq, Index Expr
}

// Len reads the length of a list.
type Len struct {
	Seq Expr
}

// Call invokes a function of the program by name.
type Call struct {
	Func string
	Args []Expr
}

// FieldInit initializes one field in a New expression.
type FieldInit struct {
	Name  string
	Value Expr
}

// New allocates an instance of TypeName.
type New struct {
	TypeName string
	Fields   []FieldInit
}

// NewList allocates a fixed-size list.
type NewList struct {
	Items []Expr
}

// RunPortal is generated by the rewriter: it hands the portal's arguments to
// the control-transfer protocol and evaluates to the portal's result.
type RunPortal struct {
	Portal string
	Args   []Expr
}

func (*Const) node()     {}
func (*Local) node()     {}
func (*BinOp) node()     {}
func (*Not) node()       {}
func (*GetField) node()  {}
func (*GetItem) node()   {}
func (*Len) node()       {}
func (*Call) node()      {}
func (*New) node()       {}
func (*NewList) node()   {}
func (*RunPortal) node() {}

func (*Const) exprNode()     {}
func (*Local) exprNode()     {}
func (*BinOp) exprNode()     {}
func (*Not) exprNode()       {}
func (*GetField) exprNode()  {}
func (*GetItem) exprNode()   {}
func (*Len) exprNode()       {}
func (*Call) exprNode()      {}
func (*New) exprNode()       {}
func (*NewList) exprNode()   {}
func (*RunPortal) exprNode() {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Assign binds a local.
type Assign struct {
	Name  string
	Value Expr
}

// SetField writes Obj.Field = Value.
type SetField struct {
	Obj   Expr
	Field string
	Value Expr
}

// SetItem writes Seq[Index] = Value.
type SetItem struct {
	Seq, Index, Value Expr
}

// ExprStmt evaluates X for its effects.
type ExprStmt struct {
	X Expr
}

type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// While loops while Cond is truthy. HotLoop, when set, names the portal
// descriptor whose merge point sits at the head of this loop.
type While struct {
	Cond    Expr
	Body    []Stmt
	HotLoop string
}

type Break struct{}

type Continue struct{}

// Return leaves the function. A nil Value returns nothing.
type Return struct {
	Value Expr
}

// Raise throws Value as a guest exception.
type Raise struct {
	Value Expr
}

// Try runs Body; if it raises, the exception is bound to Catch and Handler
// runs.
type Try struct {
	Body    []Stmt
	Catch   string
	Handler []Stmt
}

// InvalidateField is generated after writes to quasi-immutable fields.
type InvalidateField struct {
	Obj   Expr
	Field string
}

// InvalidateItem is generated after element writes.
type InvalidateItem struct {
	Seq, Index Expr
}

// ContinuePortal is generated at the end of an extracted loop body: it ends
// the current portal iteration and asks the runner to go around again with
// the current values of Args.
type ContinuePortal struct {
	Args []string
}

func (*Assign) node()          {}
func (*SetField) node()        {}
func (*SetItem) node()         {}
func (*ExprStmt) node()        {}
func (*If) node()              {}
func (*While) node()           {}
func (*Break) node()           {}
func (*Continue) node()        {}
func (*Return) node()          {}
func (*Raise) node()           {}
func (*Try) node()             {}
func (*InvalidateField) node() {}
func (*InvalidateItem) node()  {}
func (*ContinuePortal) node()  {}

func (*Assign) stmtNode()          {}
func (*SetField) stmtNode()        {}
func (*SetItem) stmtNode()         {}
func (*ExprStmt) stmtNode()        {}
func (*If) stmtNode()              {}
func (*While) stmtNode()           {}
func (*Break) stmtNode()           {}
func (*Continue) stmtNode()        {}
func (*Return) stmtNode()          {}
func (*Raise) stmtNode()           {}
func (*Try) stmtNode()             {}
func (*InvalidateField) stmtNode() {}
func (*InvalidateItem) stmtNode()  {}
func (*ContinuePortal) stmtNode()  {}

// ---------------------------------------------------------------------------
// Functions, types, programs
// ---------------------------------------------------------------------------

type Function struct {
	Name   string
	Params []string
	Body   []Stmt
}

// Program is the unit the rewriter works on.
type Program struct {
	Types     map[string]*TypeDef
	Functions map[string]*Function
}

func NewProgram() *Program {
	return &Program{
		Types:     make(map[string]*TypeDef),
		Functions: make(map[string]*Function),
	}
}

// AddType registers a type. Its annotations are parsed here so that a
// malformed annotation is reported at build time.
func (p *Program) AddType(name string, annotations ...string) (*TypeDef, error) {
	if _, exists := p.Types[name]; exists {
		return nil, fmt.Errorf("type %s already defined", name)
	}
	td, err := NewTypeDef(name, annotations...)
	if err != nil {
		return nil, err
	}
	p.Types[name] = td
	return td, nil
}

// AddFunction registers a function, replacing nothing.
func (p *Program) AddFunction(fn *Function) error {
	if _, exists := p.Functions[fn.Name]; exists {
		return fmt.Errorf("function %s already defined", fn.Name)
	}
	p.Functions[fn.Name] = fn
	return nil
}

// FunctionNames returns function names in sorted order.
func (p *Program) FunctionNames() []string {
	names := make([]string, 0, len(p.Functions))
	for name := range p.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QuasiKind reports how field is annotated in the named type.
func (p *Program) QuasiKind(typeName, field string) FieldKind {
	if td, ok := p.Types[typeName]; ok {
		return td.Kind(field)
	}
	return Mutable
}

// QuasiFieldNames returns every field name that is quasi-immutable in at
// least one type. The rewriter cannot know the static type of a write
// target, so it instruments writes to any of these names.
func (p *Program) QuasiFieldNames() map[string]bool {
	names := make(map[string]bool)
	for _, td := range p.Types {
		for field, kind := range td.kinds {
			if kind.IsQuasi() {
				names[field] = true
			}
		}
	}
	return names
}

// Copy returns a program sharing type definitions but owning deep copies of
// every function, so a rewrite never mutates its input.
func (p *Program) Copy() *Program {
	out := NewProgram()
	for name, td := range p.Types {
		out.Types[name] = td
	}
	for name, fn := range p.Functions {
		out.Functions[name] = CloneFunction(fn)
	}
	return out
}
