package interp

import (
	"github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/object"
)

func (in *Interpreter) evalBinOp(f *frame, e *flowgraph.BinOp) (object.Value, error) {
	left, err := in.eval(f, e.Left)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "and":
		if !object.Truthy(left) {
			return object.FALSE, nil
		}
		right, err := in.eval(f, e.Right)
		if err != nil {
			return nil, err
		}
		return object.NativeBool(object.Truthy(right)), nil
	case "or":
		if object.Truthy(left) {
			return object.TRUE, nil
		}
		right, err := in.eval(f, e.Right)
		if err != nil {
			return nil, err
		}
		return object.NativeBool(object.Truthy(right)), nil
	}

	right, err := in.eval(f, e.Right)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "==":
		return object.NativeBool(object.Equal(left, right)), nil
	case "!=":
		return object.NativeBool(!object.Equal(left, right)), nil
	}

	switch l := left.(type) {
	case *object.Integer:
		switch r := right.(type) {
		case *object.Integer:
			return in.intOp(f, e.Op, l.Value, r.Value)
		case *object.Float:
			return in.floatOp(f, e.Op, float64(l.Value), r.Value)
		}
	case *object.Float:
		switch r := right.(type) {
		case *object.Float:
			return in.floatOp(f, e.Op, l.Value, r.Value)
		case *object.Integer:
			return in.floatOp(f, e.Op, l.Value, float64(r.Value))
		}
	case *object.String:
		if r, ok := right.(*object.String); ok {
			return in.stringOp(f, e.Op, l.Value, r.Value)
		}
	}
	return nil, newRuntimeError(f.fn.Name, "unsupported operands for %s: %s and %s", e.Op, left.Type(), right.Type())
}

func zeroDivision() error {
	return &object.Raised{Value: object.NewException("ZeroDivisionError", "division by zero")}
}

func (in *Interpreter) intOp(f *frame, op string, a, b int64) (object.Value, error) {
	switch op {
	case "+":
		return object.NewInt(a + b), nil
	case "-":
		return object.NewInt(a - b), nil
	case "*":
		return object.NewInt(a * b), nil
	case "/":
		if b == 0 {
			return nil, zeroDivision()
		}
		return object.NewInt(a / b), nil
	case "%":
		if b == 0 {
			return nil, zeroDivision()
		}
		return object.NewInt(a % b), nil
	case "<":
		return object.NativeBool(a < b), nil
	case "<=":
		return object.NativeBool(a <= b), nil
	case ">":
		return object.NativeBool(a > b), nil
	case ">=":
		return object.NativeBool(a >= b), nil
	}
	return nil, newRuntimeError(f.fn.Name, "unknown operator %s for INTEGER", op)
}

func (in *Interpreter) floatOp(f *frame, op string, a, b float64) (object.Value, error) {
	switch op {
	case "+":
		return &object.Float{Value: a + b}, nil
	case "-":
		return &object.Float{Value: a - b}, nil
	case "*":
		return &object.Float{Value: a * b}, nil
	case "/":
		if b == 0 {
			return nil, zeroDivision()
		}
		return &object.Float{Value: a / b}, nil
	case "<":
		return object.NativeBool(a < b), nil
	case "<=":
		return object.NativeBool(a <= b), nil
	case ">":
		return object.NativeBool(a > b), nil
	case ">=":
		return object.NativeBool(a >= b), nil
	}
	return nil, newRuntimeError(f.fn.Name, "unknown operator %s for FLOAT", op)
}

func (in *Interpreter) stringOp(f *frame, op string, a, b string) (object.Value, error) {
	switch op {
	case "+":
		return object.NewString(a + b), nil
	case "<":
		return object.NativeBool(a < b), nil
	case ">":
		return object.NativeBool(a > b), nil
	}
	return nil, newRuntimeError(f.fn.Name, "unknown operator %s for STRING", op)
}
