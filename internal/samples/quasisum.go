package samples

import (
	fg "github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/portal"
)

// QuasiSum sums a quasi-immutable field in a loop, optionally bumping it on
// every iteration:
//
//	type Foo { a? }
//
//	def sum(foo, x, bump):
//	    total = 0
//	    while x > 0:            # portal "sum"
//	        total = total + foo.a
//	        if bump: foo.a = foo.a + 1
//	        x = x - 1
//	    return total
//
// main runs it three times on the same Foo: quiet, bumping, quiet again.
func QuasiSum() (*Sample, error) {
	b := newProgram()
	b.typ("Foo", "a?")
	b.fn(fg.Fn("sum", fg.Params("foo", "x", "bump"),
		fg.Let("total", fg.Int(0)),
		fg.HotLoop("sum", fg.Op(">", fg.Var("x"), fg.Int(0)),
			fg.Let("total", fg.Op("+", fg.Var("total"), fg.Field(fg.Var("foo"), "a"))),
			fg.When(fg.Var("bump"), fg.Block(
				fg.SetAttr(fg.Var("foo"), "a", fg.Op("+", fg.Field(fg.Var("foo"), "a"), fg.Int(1))),
			), nil),
			fg.Let("x", fg.Op("-", fg.Var("x"), fg.Int(1))),
		),
		fg.Ret(fg.Var("total")),
	))
	b.fn(fg.Fn("newFoo", fg.Params("a"),
		fg.Ret(fg.NewObj("Foo", fg.Init("a", fg.Var("a")))),
	))
	b.fn(fg.Fn("setA", fg.Params("foo", "v"),
		fg.SetAttr(fg.Var("foo"), "a", fg.Var("v")),
		fg.RetVoid(),
	))
	b.fn(fg.Fn("main", nil,
		fg.Let("foo", fg.CallFn("newFoo", fg.Int(100))),
		fg.Let("r1", fg.CallFn("sum", fg.Var("foo"), fg.Int(7), fg.Bool(false))),
		fg.Let("r2", fg.CallFn("sum", fg.Var("foo"), fg.Int(7), fg.Bool(true))),
		fg.Let("r3", fg.CallFn("sum", fg.Var("foo"), fg.Int(7), fg.Bool(false))),
		fg.Ret(fg.List(fg.Var("r1"), fg.Var("r2"), fg.Var("r3"))),
	))
	if b.err != nil {
		return nil, b.err
	}
	return &Sample{
		Name:        "quasisum",
		Description: "quasi-immutable field read in a loop, with and without interleaved writes",
		Program:     b.p,
		Portals: []*portal.Descriptor{{
			Name:   "sum",
			Greens: []string{"bump"},
			Reds:   []string{"foo", "x", "total"},
			Result: portal.ResultInt,
		}},
		Main: "main",
		Want: "[700, 721, 749]",
	}, nil
}
