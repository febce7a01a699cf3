// Package transfer implements the control-transfer protocol between
// compiled or traced execution and the interpreter.
//
// Every run of a portal iteration, interpreted or compiled, ends in exactly
// one Signal. The Handler consumes it: Continue goes around again,
// Return/ReturnVoid/RaiseObject end the activation, NestedCall runs another
// portal through the same protocol. Nothing here uses panics; the union is
// explicit and the dispatch is exhaustive.
package transfer

import (
	"fmt"
	"strings"

	"github.com/funvibe/portaljit/internal/object"
)

type Kind int

const (
	KindContinue Kind = iota
	KindReturn
	KindReturnVoid
	KindRaise
	KindNested
	numKinds
)

var kindNames = [...]string{"continue", "return", "return-void", "raise", "nested-call"}

func (k Kind) String() string {
	if k >= 0 && k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Signal is the tagged outcome of one portal iteration.
type Signal interface {
	Kind() Kind
	String() string
	signal()
}

// Continue asks for another iteration with new arguments.
type Continue struct {
	Greens []object.Value
	Reds   []object.Value
}

// Return ends the activation with a value in the JIT's representation.
type Return struct {
	Value object.Value
}

// ReturnVoid ends an activation that has no result.
type ReturnVoid struct{}

// RaiseObject ends the activation by raising Exception in the caller.
type RaiseObject struct {
	Exception object.Value
}

// NestedCall transfers to another portal; its outcome becomes the outcome
// of the current activation.
type NestedCall struct {
	Portal string
	Args   []object.Value
}

func (*Continue) Kind() Kind    { return KindContinue }
func (*Return) Kind() Kind      { return KindReturn }
func (*ReturnVoid) Kind() Kind  { return KindReturnVoid }
func (*RaiseObject) Kind() Kind { return KindRaise }
func (*NestedCall) Kind() Kind  { return KindNested }

func (*Continue) signal()    {}
func (*Return) signal()      {}
func (*ReturnVoid) signal()  {}
func (*RaiseObject) signal() {}
func (*NestedCall) signal()  {}

func (s *Continue) String() string {
	return fmt.Sprintf("Continue(%s; %s)", inspectAll(s.Greens), inspectAll(s.Reds))
}
func (s *Return) String() string      { return "Return(" + s.Value.Inspect() + ")" }
func (s *ReturnVoid) String() string  { return "ReturnVoid" }
func (s *RaiseObject) String() string { return "RaiseObject(" + s.Exception.Inspect() + ")" }
func (s *NestedCall) String() string {
	return fmt.Sprintf("NestedCall(%s; %s)", s.Portal, inspectAll(s.Args))
}

// Terminal reports whether sig ends the activation it was produced in.
func Terminal(sig Signal) bool {
	switch sig.Kind() {
	case KindReturn, KindReturnVoid, KindRaise:
		return true
	}
	return false
}

func inspectAll(vals []object.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.Inspect()
	}
	return strings.Join(parts, ", ")
}
