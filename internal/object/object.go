// Package object defines the guest values the interpreter and the JIT
// control plane pass around.
package object

import (
	"fmt"
	"strings"
	"sync/atomic"
)

type ObjectType string

const (
	INTEGER_OBJ  = "INTEGER"
	FLOAT_OBJ    = "FLOAT"
	BOOLEAN_OBJ  = "BOOLEAN"
	STRING_OBJ   = "STRING"
	NIL_OBJ      = "NIL"
	INSTANCE_OBJ = "INSTANCE"
	LIST_OBJ     = "LIST"
)

type Value interface {
	Type() ObjectType
	Inspect() string
}

// Identity is implemented by heap values. IDs are unique for the life of
// the process and are what monitors are keyed by.
type Identity interface {
	Value
	ObjectID() uint64
}

var lastID atomic.Uint64

func nextID() uint64 { return lastID.Add(1) }

// Integer
type Integer struct {
	Value int64
}

func (i *Integer) Type() ObjectType { return INTEGER_OBJ }
func (i *Integer) Inspect() string  { return fmt.Sprintf("%d", i.Value) }

// Float
type Float struct {
	Value float64
}

func (f *Float) Type() ObjectType { return FLOAT_OBJ }
func (f *Float) Inspect() string  { return fmt.Sprintf("%g", f.Value) }

// Boolean
type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return fmt.Sprintf("%t", b.Value) }

// String
type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return fmt.Sprintf("%q", s.Value) }

// Nil
type Nil struct{}

func (n *Nil) Type() ObjectType { return NIL_OBJ }
func (n *Nil) Inspect() string  { return "nil" }

var (
	NIL   = &Nil{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

func NewInt(v int64) *Integer { return &Integer{Value: v} }

func NewString(s string) *String { return &String{Value: s} }

func NativeBool(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

// Instance is an object of a user-defined type. Field layout is open; the
// owning type's annotations decide which fields are quasi-immutable.
type Instance struct {
	id       uint64
	TypeName string
	Fields   map[string]Value
}

func NewInstance(typeName string) *Instance {
	return &Instance{id: nextID(), TypeName: typeName, Fields: make(map[string]Value)}
}

func (in *Instance) Type() ObjectType { return INSTANCE_OBJ }
func (in *Instance) ObjectID() uint64 { return in.id }
func (in *Instance) Inspect() string {
	return fmt.Sprintf("<%s#%d>", in.TypeName, in.id)
}

// Get returns a field value, or NIL if the field was never set.
func (in *Instance) Get(field string) Value {
	if v, ok := in.Fields[field]; ok {
		return v
	}
	return NIL
}

// List is a fixed-size sequence. Elements can be replaced but the length
// never changes, so a list's identity also pins its length.
type List struct {
	id    uint64
	Items []Value
}

func NewList(items []Value) *List {
	return &List{id: nextID(), Items: items}
}

func (l *List) Type() ObjectType { return LIST_OBJ }
func (l *List) ObjectID() uint64 { return l.id }
func (l *List) Len() int         { return len(l.Items) }
func (l *List) Inspect() string {
	parts := make([]string, len(l.Items))
	for i, it := range l.Items {
		parts[i] = it.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Equal compares primitives by value and heap values by identity.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case *Integer:
		y, ok := b.(*Integer)
		return ok && x.Value == y.Value
	case *Float:
		y, ok := b.(*Float)
		return ok && x.Value == y.Value
	case *Boolean:
		y, ok := b.(*Boolean)
		return ok && x.Value == y.Value
	case *String:
		y, ok := b.(*String)
		return ok && x.Value == y.Value
	case *Nil:
		_, ok := b.(*Nil)
		return ok
	case Identity:
		y, ok := b.(Identity)
		return ok && x.ObjectID() == y.ObjectID()
	}
	return false
}

// EqualAll compares two argument vectors element-wise.
func EqualAll(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Key renders a value vector into a string usable as a map key. Heap values
// are rendered by identity.
func Key(vals []Value) string {
	var sb strings.Builder
	for i, v := range vals {
		if i > 0 {
			sb.WriteByte('|')
		}
		switch x := v.(type) {
		case Identity:
			fmt.Fprintf(&sb, "%s#%d", x.Type(), x.ObjectID())
		case nil:
			sb.WriteString("<nil>")
		default:
			sb.WriteString(string(x.Type()))
			sb.WriteByte(':')
			sb.WriteString(x.Inspect())
		}
	}
	return sb.String()
}

// Truthy follows the usual rules: false, nil, 0 and "" are false.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case *Boolean:
		return x.Value
	case *Nil:
		return false
	case *Integer:
		return x.Value != 0
	case *Float:
		return x.Value != 0
	case *String:
		return x.Value != ""
	case nil:
		return false
	}
	return true
}
