package samples

import (
	fg "github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/portal"
)

// SeqRead reads one element of a quasi-immutable sequence field and its
// length in a loop:
//
//	type Table { items?[*] }
//
//	def pick(t, idx, n):
//	    acc = 0
//	    while n > 0:            # portal "pick", green idx
//	        acc = acc + t.items[idx] + len(t.items)
//	        n = n - 1
//	    return acc
//
// main writes another element (the unit survives), the element itself
// (the unit dies) and finally replaces the whole list.
func SeqRead() (*Sample, error) {
	b := newProgram()
	b.typ("Table", "items?[*]")
	b.fn(fg.Fn("pick", fg.Params("t", "idx", "n"),
		fg.Let("acc", fg.Int(0)),
		fg.HotLoop("pick", fg.Op(">", fg.Var("n"), fg.Int(0)),
			fg.Let("acc", fg.Op("+",
				fg.Op("+", fg.Var("acc"), fg.Item(fg.Field(fg.Var("t"), "items"), fg.Var("idx"))),
				fg.Length(fg.Field(fg.Var("t"), "items")))),
			fg.Let("n", fg.Op("-", fg.Var("n"), fg.Int(1))),
		),
		fg.Ret(fg.Var("acc")),
	))
	b.fn(fg.Fn("poke", fg.Params("t", "i", "v"),
		fg.SetElem(fg.Field(fg.Var("t"), "items"), fg.Var("i"), fg.Var("v")),
		fg.RetVoid(),
	))
	b.fn(fg.Fn("swap", fg.Params("t", "items"),
		fg.SetAttr(fg.Var("t"), "items", fg.Var("items")),
		fg.RetVoid(),
	))
	b.fn(fg.Fn("main", nil,
		fg.Let("t", fg.NewObj("Table", fg.Init("items", fg.List(fg.Int(10), fg.Int(20), fg.Int(30))))),
		fg.Let("a", fg.CallFn("pick", fg.Var("t"), fg.Int(1), fg.Int(5))),
		fg.Do(fg.CallFn("poke", fg.Var("t"), fg.Int(2), fg.Int(99))),
		fg.Let("b", fg.CallFn("pick", fg.Var("t"), fg.Int(1), fg.Int(5))),
		fg.Do(fg.CallFn("poke", fg.Var("t"), fg.Int(1), fg.Int(7))),
		fg.Let("c", fg.CallFn("pick", fg.Var("t"), fg.Int(1), fg.Int(5))),
		fg.Do(fg.CallFn("swap", fg.Var("t"), fg.List(fg.Int(1), fg.Int(2)))),
		fg.Let("d", fg.CallFn("pick", fg.Var("t"), fg.Int(1), fg.Int(5))),
		fg.Ret(fg.List(fg.Var("a"), fg.Var("b"), fg.Var("c"), fg.Var("d"))),
	))
	if b.err != nil {
		return nil, b.err
	}
	return &Sample{
		Name:        "seqread",
		Description: "quasi-immutable sequence field with element and identity invalidation",
		Program:     b.p,
		Portals: []*portal.Descriptor{{
			Name:   "pick",
			Greens: []string{"idx"},
			Reds:   []string{"t", "n", "acc"},
			Result: portal.ResultInt,
		}},
		Main: "main",
		Want: "[115, 115, 50, 20]",
	}, nil
}
