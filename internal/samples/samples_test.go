package samples

import (
	"strings"
	"testing"

	"github.com/funvibe/portaljit/internal/interp"
	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/quasi"
)

func build(t *testing.T, name string) *Sample {
	t.Helper()
	s, err := Build(name)
	if err != nil {
		t.Fatalf("Build(%q): %v", name, err)
	}
	return s
}

func TestNames(t *testing.T) {
	got := strings.Join(Names(), ",")
	if got != "bytecode,outcomes,quasisum,seqread" {
		t.Errorf("Names() = %s", got)
	}
	if _, err := Build("nope"); err == nil {
		t.Error("expected error for unknown sample")
	}
}

// The unrewritten program, run by the plain interpreter, is the reference
// result every JIT configuration has to reproduce.
func TestSamples_PlainInterpretation(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			s := build(t, name)
			for _, d := range s.Portals {
				if err := d.Validate(); err != nil {
					t.Fatalf("descriptor %s: %v", d.Name, err)
				}
			}
			in := interp.New(s.Program, quasi.NewRegistry(0, nil))
			got, err := in.Call(s.Main, nil)
			if err != nil {
				t.Fatalf("%s(): %v", s.Main, err)
			}
			if got.Inspect() != s.Want {
				t.Errorf("%s() = %s, want %s", s.Main, got.Inspect(), s.Want)
			}
		})
	}
}

func TestSamples_FreshCopies(t *testing.T) {
	a := build(t, "quasisum")
	b := build(t, "quasisum")
	if a.Program == b.Program || a.Portals[0] == b.Portals[0] {
		t.Error("Build should return independent samples")
	}
}

func TestBytecodeLabel(t *testing.T) {
	code := object.NewInstance("Code")
	code.Fields["ops"] = object.NewList([]object.Value{
		object.NewInt(OpAdd), object.NewInt(3),
		object.NewInt(OpJumpIfPositive), object.NewInt(0),
	})
	tests := []struct {
		pc   int64
		want string
	}{
		{0, "bytecode(pc=0 ADD)"},
		{2, "bytecode(pc=2 JUMP_IF_POSITIVE)"},
		{9, "bytecode(pc=9 ?)"},
	}
	for _, tt := range tests {
		got := bytecodeLabel([]object.Value{object.NewInt(tt.pc), code})
		if got != tt.want {
			t.Errorf("label(pc=%d) = %q, want %q", tt.pc, got, tt.want)
		}
	}
}
