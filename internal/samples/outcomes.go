package samples

import (
	fg "github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/portal"
)

// Outcome modes of the outer portal.
const (
	ModeFallThrough = 0
	ModeReturn      = 1
	ModeRaise       = 2
	ModeNested      = 3
)

// Outcomes drives one portal through every way an iteration can end:
//
//	def outer(n, mode, exc):
//	    while n > 0:                        # portal "outer", green mode
//	        if mode == 1 and n == 3: return -1
//	        if mode == 2 and n == 3: raise exc
//	        if mode == 3 and n == 3: return inner(n * 10, 0)
//	        n = n - 1
//	    return n
//
//	def inner(k, acc):
//	    while k > 0:                        # portal "inner"
//	        acc = acc + k
//	        k = k - 1
//	    return acc
//
// inner has no prefix and takes exactly its portal's arguments, so the
// tail call from outer's loop becomes a nested portal activation.
func Outcomes() (*Sample, error) {
	b := newProgram()
	b.typ("Error", "message")
	at := func(mode int64) fg.Expr {
		return fg.Op("and",
			fg.Op("==", fg.Var("mode"), fg.Int(mode)),
			fg.Op("==", fg.Var("n"), fg.Int(3)))
	}
	b.fn(fg.Fn("outer", fg.Params("n", "mode", "exc"),
		fg.HotLoop("outer", fg.Op(">", fg.Var("n"), fg.Int(0)),
			fg.When(at(ModeReturn), fg.Block(fg.Ret(fg.Int(-1))), nil),
			fg.When(at(ModeRaise), fg.Block(fg.Throw(fg.Var("exc"))), nil),
			fg.When(at(ModeNested), fg.Block(
				fg.Ret(fg.CallFn("inner", fg.Op("*", fg.Var("n"), fg.Int(10)), fg.Int(0))),
			), nil),
			fg.Let("n", fg.Op("-", fg.Var("n"), fg.Int(1))),
		),
		fg.Ret(fg.Var("n")),
	))
	b.fn(fg.Fn("inner", fg.Params("k", "acc"),
		fg.HotLoop("inner", fg.Op(">", fg.Var("k"), fg.Int(0)),
			fg.Let("acc", fg.Op("+", fg.Var("acc"), fg.Var("k"))),
			fg.Let("k", fg.Op("-", fg.Var("k"), fg.Int(1))),
		),
		fg.Ret(fg.Var("acc")),
	))
	b.fn(fg.Fn("main", nil,
		fg.Let("exc", fg.NewObj("Error", fg.Init("message", fg.Str("boom")))),
		fg.Let("r1", fg.CallFn("outer", fg.Int(10), fg.Int(ModeFallThrough), fg.Var("exc"))),
		fg.Let("r2", fg.CallFn("outer", fg.Int(10), fg.Int(ModeReturn), fg.Var("exc"))),
		fg.Let("r3", fg.CallFn("outer", fg.Int(10), fg.Int(ModeNested), fg.Var("exc"))),
		fg.Catch(fg.Block(
			fg.Do(fg.CallFn("outer", fg.Int(10), fg.Int(ModeRaise), fg.Var("exc"))),
			fg.Let("r4", fg.Int(0)),
		), "e", fg.Block(
			fg.When(fg.Op("==", fg.Var("e"), fg.Var("exc")),
				fg.Block(fg.Let("r4", fg.Int(1))),
				fg.Block(fg.Let("r4", fg.Int(2)))),
		)),
		fg.Ret(fg.List(fg.Var("r1"), fg.Var("r2"), fg.Var("r3"), fg.Var("r4"))),
	))
	if b.err != nil {
		return nil, b.err
	}
	return &Sample{
		Name:        "outcomes",
		Description: "fall-through, early return, raise and nested tail call out of a portal",
		Program:     b.p,
		Portals: []*portal.Descriptor{
			{
				Name:      "outer",
				Greens:    []string{"mode"},
				Reds:      []string{"n", "exc"},
				Result:    portal.ResultInt,
				Recursive: true,
			},
			{
				Name:      "inner",
				Reds:      []string{"k", "acc"},
				Result:    portal.ResultInt,
				Recursive: true,
			},
		},
		Main: "main",
		Want: "[0, -1, 465, 1]",
	}, nil
}
