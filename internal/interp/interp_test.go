package interp

import (
	"errors"
	"strings"
	"testing"

	"github.com/funvibe/portaljit/internal/diagnostics"
	fg "github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/quasi"
	"github.com/funvibe/portaljit/internal/transfer"
)

func newProgram(t *testing.T, fns ...*fg.Function) *fg.Program {
	t.Helper()
	p := fg.NewProgram()
	if _, err := p.AddType("Foo", "a?", "lst?[*]", "id"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddType("Box"); err != nil {
		t.Fatal(err)
	}
	for _, fn := range fns {
		if err := p.AddFunction(fn); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func mustCall(t *testing.T, in *Interpreter, name string, args ...object.Value) object.Value {
	t.Helper()
	v, err := in.Call(name, args)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", name, err)
	}
	return v
}

func newFoo(a int64, items ...int64) *object.Instance {
	foo := object.NewInstance("Foo")
	foo.Fields["a"] = object.NewInt(a)
	list := make([]object.Value, len(items))
	for i, it := range items {
		list[i] = object.NewInt(it)
	}
	foo.Fields["lst"] = object.NewList(list)
	foo.Fields["id"] = object.NewInt(1)
	return foo
}

func TestCall_Expressions(t *testing.T) {
	tests := []struct {
		name string
		expr fg.Expr
		want string
	}{
		{"add", fg.Op("+", fg.Int(2), fg.Int(3)), "5"},
		{"precedence by tree", fg.Op("*", fg.Op("-", fg.Int(7), fg.Int(2)), fg.Int(3)), "15"},
		{"int division", fg.Op("/", fg.Int(7), fg.Int(2)), "3"},
		{"modulo", fg.Op("%", fg.Int(7), fg.Int(4)), "3"},
		{"mixed float", fg.Op("+", fg.Int(1), &fg.Const{Value: &object.Float{Value: 0.5}}), "1.5"},
		{"string concat", fg.Op("+", fg.Str("ab"), fg.Str("c")), `"abc"`},
		{"compare", fg.Op("<=", fg.Int(3), fg.Int(3)), "true"},
		{"equal", fg.Op("==", fg.Str("x"), fg.Str("x")), "true"},
		{"not equal", fg.Op("!=", fg.Int(1), fg.Int(1)), "false"},
		{"and short circuit", fg.Op("and", fg.Bool(false), fg.Var("missing")), "false"},
		{"or short circuit", fg.Op("or", fg.Int(1), fg.Var("missing")), "true"},
		{"not", fg.Neg(fg.Int(0)), "true"},
		{"list len", fg.Length(fg.List(fg.Int(1), fg.Int(2))), "2"},
		{"string len", fg.Length(fg.Str("abcd")), "4"},
		{"item", fg.Item(fg.List(fg.Int(4), fg.Int(5)), fg.Int(1)), "5"},
		{"field", fg.Field(fg.NewObj("Box", fg.Init("v", fg.Int(9))), "v"), "9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgram(t, fg.Fn("f", nil, fg.Ret(tt.expr)))
			v := mustCall(t, New(p, nil), "f")
			if v.Inspect() != tt.want {
				t.Errorf("got %s, want %s", v.Inspect(), tt.want)
			}
		})
	}
}

func TestCall_LoopBreakContinue(t *testing.T) {
	fn := fg.Fn("odd", nil,
		fg.Let("i", fg.Int(0)),
		fg.Let("s", fg.Int(0)),
		fg.Loop(fg.Op("<", fg.Var("i"), fg.Int(10)),
			fg.Let("i", fg.Op("+", fg.Var("i"), fg.Int(1))),
			fg.When(fg.Op("==", fg.Op("%", fg.Var("i"), fg.Int(2)), fg.Int(0)), fg.Block(&fg.Continue{}), nil),
			fg.When(fg.Op(">", fg.Var("i"), fg.Int(7)), fg.Block(&fg.Break{}), nil),
			fg.Let("s", fg.Op("+", fg.Var("s"), fg.Var("i"))),
		),
		fg.Ret(fg.Var("s")),
	)
	v := mustCall(t, New(newProgram(t, fn), nil), "odd")
	if v.Inspect() != "16" {
		t.Errorf("got %s, want 16", v.Inspect())
	}
}

func TestCall_Functions(t *testing.T) {
	p := newProgram(t,
		fg.Fn("double", fg.Params("x"), fg.Ret(fg.Op("*", fg.Var("x"), fg.Int(2)))),
		fg.Fn("main", fg.Params("y"), fg.Ret(fg.CallFn("double", fg.Op("+", fg.Var("y"), fg.Int(1))))),
		fg.Fn("nothing", nil, fg.RetVoid()),
	)
	in := New(p, nil)
	if v := mustCall(t, in, "main", object.NewInt(4)); v.Inspect() != "10" {
		t.Errorf("main(4) = %s", v.Inspect())
	}
	if v := mustCall(t, in, "nothing"); v != object.NIL {
		t.Errorf("void function returned %s", v.Inspect())
	}
	if in.Stats().Calls != 3 {
		t.Errorf("calls = %d", in.Stats().Calls)
	}
}

func TestCall_TryCatchKeepsIdentity(t *testing.T) {
	p := newProgram(t,
		fg.Fn("thrower", fg.Params("e"), fg.Throw(fg.Var("e"))),
		fg.Fn("catcher", fg.Params("e"),
			fg.Catch(fg.Block(fg.Do(fg.CallFn("thrower", fg.Var("e")))), "caught",
				fg.Block(fg.Ret(fg.Var("caught")))),
			fg.Ret(fg.Nil()),
		),
	)
	exc := object.NewException("ValueError", "bad")
	in := New(p, nil)
	if v := mustCall(t, in, "catcher", exc); v != object.Value(exc) {
		t.Errorf("caught a different object: %v", v)
	}

	_, err := in.Call("thrower", []object.Value{exc})
	var raised *object.Raised
	if !errors.As(err, &raised) || raised.Value != object.Value(exc) {
		t.Fatalf("expected the raised exception, got %v", err)
	}
	if raised.Error() != "ValueError: bad" {
		t.Errorf("message = %q", raised.Error())
	}
}

func TestCall_GuestExceptions(t *testing.T) {
	tests := []struct {
		name string
		expr fg.Expr
		exc  string
	}{
		{"int division", fg.Op("/", fg.Int(1), fg.Int(0)), "ZeroDivisionError"},
		{"int modulo", fg.Op("%", fg.Int(1), fg.Int(0)), "ZeroDivisionError"},
		{"float division", fg.Op("/", &fg.Const{Value: &object.Float{Value: 1}}, fg.Int(0)), "ZeroDivisionError"},
		{"index", fg.Item(fg.List(fg.Int(1)), fg.Int(3)), "IndexError"},
		{"negative index", fg.Item(fg.List(fg.Int(1)), fg.Int(-1)), "IndexError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgram(t, fg.Fn("f", nil, fg.Ret(tt.expr)))
			_, err := New(p, nil).Call("f", nil)
			var raised *object.Raised
			if !errors.As(err, &raised) {
				t.Fatalf("expected guest exception, got %v", err)
			}
			if inst := raised.Value.(*object.Instance); inst.TypeName != tt.exc {
				t.Errorf("raised %s, want %s", inst.TypeName, tt.exc)
			}
		})
	}
}

func TestCall_RuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		body []fg.Stmt
		want string
	}{
		{"undefined local", fg.Block(fg.Ret(fg.Var("nope"))), "undefined local nope"},
		{"undefined function", fg.Block(fg.Do(fg.CallFn("nope"))), "undefined function nope"},
		{"undefined type", fg.Block(fg.Do(fg.NewObj("Nope"))), "undefined type Nope"},
		{"bad operands", fg.Block(fg.Ret(fg.Op("+", fg.Int(1), fg.Str("x")))), "unsupported operands"},
		{"field of int", fg.Block(fg.Ret(fg.Field(fg.Int(1), "a"))), "cannot read field a"},
		{"missing field", fg.Block(fg.Ret(fg.Field(fg.NewObj("Box"), "a"))), "Box has no field a"},
		{"immutable write", fg.Block(
			fg.Let("f", fg.NewObj("Foo", fg.Init("id", fg.Int(1)))),
			fg.SetAttr(fg.Var("f"), "id", fg.Int(2)),
		), "field id of Foo is immutable"},
		{"break outside loop", fg.Block(&fg.Break{}), "break outside a loop"},
		{"portal continuation", fg.Block(&fg.ContinuePortal{}), "portal continuation outside"},
		{"no portal runner", fg.Block(fg.Do(&fg.RunPortal{Portal: "p"})), "no portal runner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgram(t, fg.Fn("f", nil, tt.body...))
			_, err := New(p, nil).Call("f", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, diagnostics.Code(diagnostics.ErrR001)) {
				t.Errorf("expected R001, got %T %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestCall_DepthLimit(t *testing.T) {
	p := newProgram(t, fg.Fn("loop", nil, fg.Ret(fg.CallFn("loop"))))
	in := New(p, nil)
	in.MaxDepth = 50
	_, err := in.Call("loop", nil)
	if err == nil || !strings.Contains(err.Error(), "call depth exceeds 50") {
		t.Errorf("expected depth error, got %v", err)
	}
}

// countdownPortal mirrors what the rewriter extracts from
//
//	while n > 0: if n == 5: return "early"; if n == 3: raise e; n = n - 1
//	return n
func countdownPortal() *fg.Function {
	return fg.Fn("p$portal", fg.Params("k", "n", "e"),
		&fg.While{
			Cond: fg.Op(">", fg.Var("n"), fg.Int(0)),
			Body: fg.Block(
				fg.When(fg.Op("==", fg.Var("n"), fg.Int(5)), fg.Block(fg.Ret(fg.Str("early"))), nil),
				fg.When(fg.Op("==", fg.Var("n"), fg.Int(3)), fg.Block(fg.Throw(fg.Var("e"))), nil),
				fg.When(fg.Op("==", fg.Var("n"), fg.Int(4)), fg.Block(fg.RetVoid()), nil),
				fg.When(fg.Op("==", fg.Var("n"), fg.Int(6)), fg.Block(fg.Ret(fg.CallFn("q$runner", fg.Var("n")))), nil),
				fg.Let("n", fg.Op("-", fg.Var("n"), fg.Int(1))),
				&fg.ContinuePortal{Args: []string{"k", "n", "e"}},
			),
		},
		fg.Ret(fg.Var("n")),
	)
}

func TestRunIteration_Signals(t *testing.T) {
	portalFn := countdownPortal()
	p := newProgram(t, portalFn, fg.Fn("q$runner", fg.Params("x"), fg.Ret(fg.Var("x"))))
	in := New(p, nil)
	in.SetEntries(map[string]string{"q$runner": "q"})

	exc := object.NewException("Stop", "three")
	k := object.NewString("pc")

	tests := []struct {
		n    int64
		want string
	}{
		{2, `Continue("pc"; 1, <Stop#` },
		{0, "Return(0)"},
		{5, `Return("early")`},
		{4, "ReturnVoid"},
		{3, "RaiseObject(<Stop#"},
		{6, "NestedCall(q; 6)"},
	}
	for _, tt := range tests {
		sig, err := in.RunIteration(portalFn, []object.Value{k}, []object.Value{object.NewInt(tt.n), exc}, nil)
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", tt.n, err)
		}
		if !strings.HasPrefix(sig.String(), tt.want) {
			t.Errorf("n=%d: got %s, want prefix %s", tt.n, sig, tt.want)
		}
	}

	sig, _ := in.RunIteration(portalFn, []object.Value{k}, []object.Value{object.NewInt(3), exc}, nil)
	if r, ok := sig.(*transfer.RaiseObject); !ok || r.Exception != object.Value(exc) {
		t.Errorf("raise lost identity: %v", sig)
	}
	sig, _ = in.RunIteration(portalFn, []object.Value{k}, []object.Value{object.NewInt(2), exc}, nil)
	if c, ok := sig.(*transfer.Continue); !ok || len(c.Greens) != 1 || len(c.Reds) != 2 {
		t.Errorf("continue split wrongly: %v", sig)
	}
	if in.Stats().Iterations != len(tests)+2 {
		t.Errorf("iterations = %d", in.Stats().Iterations)
	}
}

func TestRunIteration_NestedOnlyInPortalFrame(t *testing.T) {
	p := newProgram(t,
		fg.Fn("q$runner", fg.Params("x"), fg.Ret(fg.Op("+", fg.Var("x"), fg.Int(1)))),
		fg.Fn("helper", fg.Params("x"), fg.Ret(fg.CallFn("q$runner", fg.Var("x")))),
	)
	in := New(p, nil)
	in.SetEntries(map[string]string{"q$runner": "q"})
	if v := mustCall(t, in, "helper", object.NewInt(1)); v.Inspect() != "2" {
		t.Errorf("ordinary frame must call through, got %s", v.Inspect())
	}
}

func TestRunIteration_NoTailTransferUnderTry(t *testing.T) {
	portalFn := fg.Fn("p$portal", fg.Params("n"),
		fg.Catch(fg.Block(fg.Ret(fg.CallFn("q$runner", fg.Var("n")))), "e",
			fg.Block(fg.Ret(fg.Int(-7)))),
	)
	p := newProgram(t, portalFn,
		fg.Fn("q$runner", fg.Params("x"),
			fg.When(fg.Op("<", fg.Var("x"), fg.Int(0)), fg.Block(fg.Throw(fg.Str("boom"))), nil),
			fg.Ret(fg.Op("+", fg.Var("x"), fg.Int(1))),
		),
	)
	in := New(p, nil)
	in.SetEntries(map[string]string{"q$runner": "q"})

	tests := []struct {
		n    int64
		want string
	}{
		{1, "Return(2)"},
		{-1, "Return(-7)"},
	}
	for _, tt := range tests {
		sig, err := in.RunIteration(portalFn, nil, []object.Value{object.NewInt(tt.n)}, nil)
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", tt.n, err)
		}
		if sig.String() != tt.want {
			t.Errorf("n=%d: got %s, want %s", tt.n, sig, tt.want)
		}
	}
}

type recordingHooks struct {
	fields   []string
	items    []int
	barriers int
	override map[string]object.Value
}

func (h *recordingHooks) QuasiField(obj *object.Instance, field string, live object.Value) object.Value {
	h.fields = append(h.fields, field)
	if v, ok := h.override[field]; ok {
		return v
	}
	return live
}

func (h *recordingHooks) QuasiItem(obj *object.Instance, field string, list *object.List, index int, live object.Value) object.Value {
	h.items = append(h.items, index)
	return live
}

func (h *recordingHooks) Barrier() { h.barriers++ }

func TestRunIteration_Hooks(t *testing.T) {
	portalFn := fg.Fn("p$portal", fg.Params("foo", "box"),
		fg.Let("x", fg.Op("+", fg.Field(fg.Var("foo"), "a"), fg.Item(fg.Field(fg.Var("foo"), "lst"), fg.Int(1)))),
		fg.Let("x", fg.Op("+", fg.Var("x"), fg.Length(fg.Field(fg.Var("foo"), "lst")))),
		fg.Let("x", fg.Op("+", fg.Var("x"), fg.Field(fg.Var("foo"), "id"))),
		fg.Let("x", fg.Op("+", fg.Var("x"), fg.Field(fg.Var("box"), "a"))),
		fg.Let("y", fg.Item(fg.Var("l"), fg.Int(0))),
		&fg.InvalidateField{Obj: fg.Var("foo"), Field: "a"},
		fg.Do(fg.CallFn("id", fg.Int(0))),
		fg.Ret(fg.Var("x")),
	)
	portalFn.Body = append([]fg.Stmt{fg.Let("l", fg.Field(fg.Var("foo"), "lst"))}, portalFn.Body...)
	p := newProgram(t, portalFn, fg.Fn("id", fg.Params("v"), fg.Ret(fg.Var("v"))))

	reg := quasi.NewRegistry(0, nil)
	in := New(p, reg)
	foo := newFoo(10, 1, 2, 3)
	box := object.NewInstance("Box")
	box.Fields["a"] = object.NewInt(100)

	h := &recordingHooks{override: map[string]object.Value{"a": object.NewInt(1000)}}
	sig, err := in.RunIteration(portalFn, nil, []object.Value{foo, box}, h)
	if err != nil {
		t.Fatal(err)
	}
	// 1000 (hooked a) + 2 (lst[1]) + 3 (len) + 1 (id) + 100 (box.a, not quasi in Box)
	if sig.String() != "Return(1106)" {
		t.Errorf("got %s", sig)
	}
	if got := strings.Join(h.fields, ","); got != "lst,a,lst,lst" {
		t.Errorf("quasi field reads = %s", got)
	}
	if len(h.items) != 1 || h.items[0] != 1 {
		t.Errorf("quasi item reads = %v (reads through a local are plain)", h.items)
	}
	if h.barriers != 2 {
		t.Errorf("barriers = %d, want 2", h.barriers)
	}
	if in.Stats().Invalidations != 1 {
		t.Errorf("invalidations = %d", in.Stats().Invalidations)
	}
}

func TestInvalidationStatements(t *testing.T) {
	fn := fg.Fn("w", fg.Params("foo"),
		fg.SetAttr(fg.Var("foo"), "a", fg.Int(5)),
		&fg.InvalidateField{Obj: fg.Var("foo"), Field: "a"},
		fg.SetElem(fg.Field(fg.Var("foo"), "lst"), fg.Int(0), fg.Int(7)),
		&fg.InvalidateItem{Seq: fg.Field(fg.Var("foo"), "lst"), Index: fg.Int(0)},
	)
	reg := quasi.NewRegistry(0, nil)
	in := New(newProgram(t, fn), reg)
	foo := newFoo(1, 0, 0)
	lst := foo.Fields["lst"].(*object.List)

	fieldMon := reg.GetOrCreateMonitor(quasi.KeyOf(foo, "a"))
	elemMon := reg.GetOrCreateMonitor(quasi.ElementKey(lst.ObjectID(), 0))
	otherMon := reg.GetOrCreateMonitor(quasi.ElementKey(lst.ObjectID(), 1))

	mustCall(t, in, "w", foo)
	if fieldMon.Valid() || elemMon.Valid() {
		t.Errorf("written monitors must be invalid")
	}
	if !otherMon.Valid() {
		t.Errorf("element 1 was not written")
	}
	if foo.Get("a").Inspect() != "5" || lst.Items[0].Inspect() != "7" {
		t.Errorf("writes lost: a=%s lst=%s", foo.Get("a").Inspect(), lst.Inspect())
	}
}

type fakeRunner struct {
	calls []string
}

func (r *fakeRunner) Call(name string, args []object.Value) (object.Value, error) {
	r.calls = append(r.calls, name+"("+object.Key(args)+")")
	return object.NewInt(int64(len(args))), nil
}

func TestRunPortalIntrinsic(t *testing.T) {
	fn := fg.Fn("p$runner", fg.Params("a", "b"),
		fg.Ret(&fg.RunPortal{Portal: "p", Args: []fg.Expr{fg.Var("a"), fg.Var("b")}}))
	in := New(newProgram(t, fn), nil)
	r := &fakeRunner{}
	in.SetPortalRunner(r)

	v := mustCall(t, in, "p$runner", object.NewInt(1), object.NewInt(2))
	if v.Inspect() != "2" {
		t.Errorf("got %s", v.Inspect())
	}
	if len(r.calls) != 1 || r.calls[0] != "p(INTEGER:1|INTEGER:2)" {
		t.Errorf("runner calls = %v", r.calls)
	}
}
