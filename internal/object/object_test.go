package object

import "testing"

func TestEqual(t *testing.T) {
	a := NewInstance("Foo")
	b := NewInstance("Foo")
	tests := []struct {
		name string
		x, y Value
		want bool
	}{
		{"same int", NewInt(3), NewInt(3), true},
		{"different int", NewInt(3), NewInt(4), false},
		{"int vs bool", NewInt(1), TRUE, false},
		{"strings", NewString("x"), NewString("x"), true},
		{"nil", NIL, &Nil{}, true},
		{"same instance", a, a, true},
		{"distinct instances", a, b, false},
		{"floats", &Float{Value: 1.5}, &Float{Value: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.x, tt.y); got != tt.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tt.x.Inspect(), tt.y.Inspect(), got, tt.want)
			}
		})
	}
}

func TestIdentitiesAreUnique(t *testing.T) {
	seen := make(map[uint64]bool)
	for i := 0; i < 100; i++ {
		var v Identity
		if i%2 == 0 {
			v = NewInstance("T")
		} else {
			v = NewList(nil)
		}
		if seen[v.ObjectID()] {
			t.Fatalf("identity %d reused", v.ObjectID())
		}
		seen[v.ObjectID()] = true
	}
}

func TestKey(t *testing.T) {
	in := NewInstance("Foo")
	k1 := Key([]Value{NewInt(1), in})
	k2 := Key([]Value{NewInt(1), in})
	if k1 != k2 {
		t.Errorf("keys differ for identical vectors: %q vs %q", k1, k2)
	}
	if Key([]Value{NewInt(1), NewInstance("Foo")}) == k1 {
		t.Error("distinct instances must not share a key")
	}
	if Key([]Value{NewInt(1)}) == Key([]Value{NewString("1")}) {
		t.Error("int and string must not share a key")
	}
}

func TestTruthy(t *testing.T) {
	if Truthy(NIL) || Truthy(FALSE) || Truthy(NewInt(0)) || Truthy(NewString("")) {
		t.Error("falsy value reported truthy")
	}
	if !Truthy(TRUE) || !Truthy(NewInt(2)) || !Truthy(NewInstance("X")) {
		t.Error("truthy value reported falsy")
	}
}

func TestRaisedMessage(t *testing.T) {
	exc := NewException("ValueError", "bad")
	r := &Raised{Value: exc}
	if r.Error() != "ValueError: bad" {
		t.Errorf("Error() = %q", r.Error())
	}
}
