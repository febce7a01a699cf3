package flowgraph

import (
	"sort"
	"strings"

	"github.com/funvibe/portaljit/internal/diagnostics"
)

// FieldKind describes how a field may be treated by compiled code.
type FieldKind int

const (
	Mutable FieldKind = iota
	Immutable
	QuasiScalar   // "a?"
	QuasiSequence // "lst?[*]"
)

func (k FieldKind) IsQuasi() bool { return k == QuasiScalar || k == QuasiSequence }

func (k FieldKind) String() string {
	switch k {
	case Immutable:
		return "immutable"
	case QuasiScalar:
		return "quasi"
	case QuasiSequence:
		return "quasi-seq"
	default:
		return "mutable"
	}
}

// FieldAnnotation is one parsed entry of a type's immutable-fields list.
type FieldAnnotation struct {
	Field string
	Kind  FieldKind
}

// ParseFieldAnnotation parses "a", "a?" or "lst?[*]".
func ParseFieldAnnotation(s string) (FieldAnnotation, error) {
	raw := s
	kind := Immutable
	switch {
	case strings.HasSuffix(s, "?[*]"):
		kind = QuasiSequence
		s = strings.TrimSuffix(s, "?[*]")
	case strings.HasSuffix(s, "?"):
		kind = QuasiScalar
		s = strings.TrimSuffix(s, "?")
	}
	if !isIdent(s) {
		return FieldAnnotation{}, diagnostics.NewError(diagnostics.ErrB006, "", "invalid field annotation %q", raw)
	}
	return FieldAnnotation{Field: s, Kind: kind}, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// TypeDef is a guest type with its field annotations.
type TypeDef struct {
	Name        string
	Annotations []string
	kinds       map[string]FieldKind
}

func NewTypeDef(name string, annotations ...string) (*TypeDef, error) {
	td := &TypeDef{Name: name, Annotations: annotations, kinds: make(map[string]FieldKind)}
	for _, a := range annotations {
		fa, err := ParseFieldAnnotation(a)
		if err != nil {
			if d, ok := err.(*diagnostics.DiagnosticError); ok {
				d.Where = name
			}
			return nil, err
		}
		if _, dup := td.kinds[fa.Field]; dup {
			return nil, diagnostics.NewError(diagnostics.ErrB006, name, "field %q annotated twice", fa.Field)
		}
		td.kinds[fa.Field] = fa.Kind
	}
	return td, nil
}

// Kind returns the annotation of field, Mutable when unannotated.
func (td *TypeDef) Kind(field string) FieldKind {
	if k, ok := td.kinds[field]; ok {
		return k
	}
	return Mutable
}

// QuasiFields lists the quasi-immutable fields in sorted order.
func (td *TypeDef) QuasiFields() []string {
	var out []string
	for f, k := range td.kinds {
		if k.IsQuasi() {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
