package samples

import (
	"fmt"

	fg "github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/portal"
)

// Opcodes of the toy bytecode. Every instruction is an (op, arg) pair.
const (
	OpAdd            = 0
	OpSub            = 1
	OpJumpIfPositive = 2
	opCount          = 3
)

var opNames = [opCount]string{"ADD", "SUB", "JUMP_IF_POSITIVE"}

// Bytecode is a small bytecode interpreter with the program counter as a
// green variable, the shape the control plane was built for:
//
//	type Code { ops?[*] }
//
//	def run(code, acc):
//	    pc = 0
//	    steps = 0
//	    while pc < len(code.ops):           # portal "bytecode", greens pc, code
//	        op = code.ops[pc]
//	        arg = code.ops[pc + 1]
//	        pc = pc + 2
//	        steps = steps + 1
//	        if op == ADD: acc = acc + arg
//	        elif op == SUB: acc = acc - arg
//	        elif op == JUMP_IF_POSITIVE:
//	            if acc > 0: pc = arg
//	    return steps
//
// A trace starting at pc 0 goes round the three instructions before it
// closes. main patches the SUB operand in between two runs.
func Bytecode() (*Sample, error) {
	b := newProgram()
	b.typ("Code", "ops?[*]")
	ops := func() fg.Expr { return fg.Field(fg.Var("code"), "ops") }
	b.fn(fg.Fn("run", fg.Params("code", "acc"),
		fg.Let("pc", fg.Int(0)),
		fg.Let("steps", fg.Int(0)),
		fg.HotLoop("bytecode", fg.Op("<", fg.Var("pc"), fg.Length(ops())),
			fg.Let("op", fg.Item(ops(), fg.Var("pc"))),
			fg.Let("arg", fg.Item(ops(), fg.Op("+", fg.Var("pc"), fg.Int(1)))),
			fg.Let("pc", fg.Op("+", fg.Var("pc"), fg.Int(2))),
			fg.Let("steps", fg.Op("+", fg.Var("steps"), fg.Int(1))),
			fg.When(fg.Op("==", fg.Var("op"), fg.Int(OpAdd)),
				fg.Block(fg.Let("acc", fg.Op("+", fg.Var("acc"), fg.Var("arg")))),
				fg.Block(fg.When(fg.Op("==", fg.Var("op"), fg.Int(OpSub)),
					fg.Block(fg.Let("acc", fg.Op("-", fg.Var("acc"), fg.Var("arg")))),
					fg.Block(fg.When(fg.Op("and",
						fg.Op("==", fg.Var("op"), fg.Int(OpJumpIfPositive)),
						fg.Op(">", fg.Var("acc"), fg.Int(0))),
						fg.Block(fg.Let("pc", fg.Var("arg"))), nil)),
				)),
			),
		),
		fg.Ret(fg.Var("steps")),
	))
	b.fn(fg.Fn("patch", fg.Params("code", "i", "v"),
		fg.SetElem(ops(), fg.Var("i"), fg.Var("v")),
		fg.RetVoid(),
	))
	b.fn(fg.Fn("main", nil,
		fg.Let("code", fg.NewObj("Code", fg.Init("ops", fg.List(
			fg.Int(OpAdd), fg.Int(3),
			fg.Int(OpSub), fg.Int(4),
			fg.Int(OpJumpIfPositive), fg.Int(0),
		)))),
		fg.Let("a", fg.CallFn("run", fg.Var("code"), fg.Int(10))),
		fg.Do(fg.CallFn("patch", fg.Var("code"), fg.Int(3), fg.Int(5))),
		fg.Let("b", fg.CallFn("run", fg.Var("code"), fg.Int(10))),
		fg.Ret(fg.List(fg.Var("a"), fg.Var("b"))),
	))
	if b.err != nil {
		return nil, b.err
	}
	return &Sample{
		Name:        "bytecode",
		Description: "bytecode dispatch loop with a green program counter and patchable code",
		Program:     b.p,
		Portals: []*portal.Descriptor{{
			Name:   "bytecode",
			Greens: []string{"pc", "code"},
			Reds:   []string{"acc", "steps"},
			Result: portal.ResultInt,
			Hooks: portal.Hooks{
				LocationLabel: bytecodeLabel,
				UniqueID: func(greens []object.Value) int64 {
					if pc, ok := greens[0].(*object.Integer); ok {
						return pc.Value
					}
					return -1
				},
			},
		}},
		Main: "main",
		Want: "[30, 15]",
	}, nil
}

func bytecodeLabel(greens []object.Value) string {
	pc, ok := greens[0].(*object.Integer)
	if !ok {
		return "bytecode(?)"
	}
	name := "?"
	if code, ok := greens[1].(*object.Instance); ok {
		if l, ok := code.Get("ops").(*object.List); ok && int(pc.Value) < l.Len() {
			if op, ok := l.Items[pc.Value].(*object.Integer); ok && op.Value >= 0 && op.Value < opCount {
				name = opNames[op.Value]
			}
		}
	}
	return fmt.Sprintf("bytecode(pc=%d %s)", pc.Value, name)
}
