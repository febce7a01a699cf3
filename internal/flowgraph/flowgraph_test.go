package flowgraph

import (
	"errors"
	"strings"
	"testing"

	"github.com/funvibe/portaljit/internal/diagnostics"
)

func TestParseFieldAnnotation(t *testing.T) {
	tests := []struct {
		in    string
		field string
		kind  FieldKind
	}{
		{"a", "a", Immutable},
		{"a?", "a", QuasiScalar},
		{"lst?[*]", "lst", QuasiSequence},
		{"_x1?", "_x1", QuasiScalar},
	}
	for _, tt := range tests {
		fa, err := ParseFieldAnnotation(tt.in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tt.in, err)
		}
		if fa.Field != tt.field || fa.Kind != tt.kind {
			t.Errorf("%q: got %+v, want field=%s kind=%s", tt.in, fa, tt.field, tt.kind)
		}
	}
}

func TestParseFieldAnnotation_Malformed(t *testing.T) {
	for _, in := range []string{"", "?", "1a?", "a??", "a[*]", "a b?", "lst?[*]?"} {
		_, err := ParseFieldAnnotation(in)
		if err == nil {
			t.Errorf("%q: expected error", in)
			continue
		}
		if !errors.Is(err, diagnostics.Code(diagnostics.ErrB006)) {
			t.Errorf("%q: expected B006, got %v", in, err)
		}
	}
}

func TestTypeDef(t *testing.T) {
	p := NewProgram()
	td, err := p.AddType("Foo", "a?", "lst?[*]", "name")
	if err != nil {
		t.Fatal(err)
	}
	if td.Kind("a") != QuasiScalar || td.Kind("lst") != QuasiSequence || td.Kind("name") != Immutable {
		t.Errorf("unexpected kinds: a=%s lst=%s name=%s", td.Kind("a"), td.Kind("lst"), td.Kind("name"))
	}
	if td.Kind("other") != Mutable {
		t.Errorf("unannotated field should be mutable")
	}
	if got := strings.Join(td.QuasiFields(), ","); got != "a,lst" {
		t.Errorf("QuasiFields = %s", got)
	}
	if _, err := p.AddType("Foo"); err == nil {
		t.Error("expected duplicate type error")
	}
	if _, err := p.AddType("Bar", "x?", "x"); err == nil {
		t.Error("expected error for field annotated twice")
	}
	names := p.QuasiFieldNames()
	if !names["a"] || !names["lst"] || names["name"] {
		t.Errorf("QuasiFieldNames = %v", names)
	}
}

func TestCopyDoesNotShareStatements(t *testing.T) {
	p := NewProgram()
	fn := Fn("f", Params("x"),
		HotLoop("d", Op("<", Var("x"), Int(3)),
			Let("x", Op("+", Var("x"), Int(1))),
		),
		Ret(Var("x")),
	)
	if err := p.AddFunction(fn); err != nil {
		t.Fatal(err)
	}
	cp := p.Copy()
	loop := cp.Functions["f"].Body[0].(*While)
	loop.HotLoop = ""
	loop.Body = append(loop.Body, &Break{})

	orig := p.Functions["f"].Body[0].(*While)
	if orig.HotLoop != "d" || len(orig.Body) != 1 {
		t.Errorf("copy mutated the original: %+v", orig)
	}
}

func TestWalkAndUses(t *testing.T) {
	body := Block(
		Let("a", Op("+", Var("b"), Field(Var("foo"), "x"))),
		When(Var("c"), Block(Do(CallFn("g", Var("d")))), nil),
		Loop(Bool(true), Catch(Block(Throw(Var("e"))), "err", Block(&Break{}))),
	)
	var kinds []string
	WalkStmts(body, func(s Stmt) bool {
		switch s.(type) {
		case *Raise:
			kinds = append(kinds, "raise")
		case *Break:
			kinds = append(kinds, "break")
		}
		return true
	})
	if strings.Join(kinds, ",") != "raise,break" {
		t.Errorf("walk order = %v", kinds)
	}
	uses := ExprUses(Op("+", Var("b"), Op("*", Var("b"), Field(Var("foo"), "x"))))
	if strings.Join(uses, ",") != "b,foo" {
		t.Errorf("uses = %v", uses)
	}
	calls := CallsIn(body)
	if !calls["g"] || len(calls) != 1 {
		t.Errorf("calls = %v", calls)
	}
}

func TestDump(t *testing.T) {
	p := NewProgram()
	if _, err := p.AddType("Foo", "a?"); err != nil {
		t.Fatal(err)
	}
	_ = p.AddFunction(Fn("sum", Params("foo", "n"),
		Let("total", Int(0)),
		HotLoop("sum", Op(">", Var("n"), Int(0)),
			Let("total", Op("+", Var("total"), Field(Var("foo"), "a"))),
			Let("n", Op("-", Var("n"), Int(1))),
		),
		Ret(Var("total")),
	))
	out := Dump(p)
	for _, want := range []string{
		"type Foo [a?]",
		"func sum(foo, n):",
		"while (n > 0):  # merge point sum",
		"total = (total + foo.a)",
		"return total",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}
