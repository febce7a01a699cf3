package flowgraph

import "github.com/funvibe/portaljit/internal/object"

// Builder helpers. Programs are assembled in Go; these keep sample programs
// and tests readable.

func Int(v int64) Expr     { return &Const{Value: object.NewInt(v)} }
func Str(s string) Expr    { return &Const{Value: object.NewString(s)} }
func Bool(b bool) Expr     { return &Const{Value: object.NativeBool(b)} }
func Nil() Expr            { return &Const{Value: object.NIL} }
func Var(name string) Expr { return &Local{Name: name} }

func Op(op string, left, right Expr) Expr { return &BinOp{Op: op, Left: left, Right: right} }
func Neg(x Expr) Expr                     { return &Not{X: x} }

func Field(obj Expr, field string) Expr { return &GetField{Obj: obj, Field: field} }
func Item(seq, index Expr) Expr         { return &GetItem{Seq: seq, Index: index} }
func Length(seq Expr) Expr              { return &Len{Seq: seq} }

func CallFn(name string, args ...Expr) Expr { return &Call{Func: name, Args: args} }

func Init(name string, value Expr) FieldInit { return FieldInit{Name: name, Value: value} }

func NewObj(typeName string, fields ...FieldInit) Expr {
	return &New{TypeName: typeName, Fields: fields}
}

func List(items ...Expr) Expr { return &NewList{Items: items} }

func Let(name string, value Expr) Stmt { return &Assign{Name: name, Value: value} }

func SetAttr(obj Expr, field string, value Expr) Stmt {
	return &SetField{Obj: obj, Field: field, Value: value}
}

func SetElem(seq, index, value Expr) Stmt {
	return &SetItem{Seq: seq, Index: index, Value: value}
}

func Do(x Expr) Stmt { return &ExprStmt{X: x} }

func When(cond Expr, then []Stmt, els []Stmt) Stmt {
	return &If{Cond: cond, Then: then, Else: els}
}

func Loop(cond Expr, body ...Stmt) *While { return &While{Cond: cond, Body: body} }

// HotLoop builds a loop whose head is the merge point of driver.
func HotLoop(driver string, cond Expr, body ...Stmt) *While {
	return &While{Cond: cond, Body: body, HotLoop: driver}
}

func Ret(value Expr) Stmt { return &Return{Value: value} }
func RetVoid() Stmt       { return &Return{} }
func Throw(value Expr) Stmt {
	return &Raise{Value: value}
}

func Catch(body []Stmt, name string, handler []Stmt) Stmt {
	return &Try{Body: body, Catch: name, Handler: handler}
}

func Block(stmts ...Stmt) []Stmt { return stmts }

func Fn(name string, params []string, body ...Stmt) *Function {
	return &Function{Name: name, Params: params, Body: body}
}

// Params is a readability helper for Fn.
func Params(names ...string) []string { return names }
