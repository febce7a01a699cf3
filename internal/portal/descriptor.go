// Package portal describes hot loops at build time: which of the loop's
// live variables are green (compile-time constant per compiled unit) and
// which are red, what the portal returns, and the optional hooks the
// warm-up oracle consults.
package portal

import (
	"fmt"
	"strings"

	"github.com/funvibe/portaljit/internal/diagnostics"
	"github.com/funvibe/portaljit/internal/object"
)

// ResultType is the caller-side representation of a portal's result.
type ResultType string

const (
	ResultVoid  ResultType = "void"
	ResultInt   ResultType = "int"
	ResultFloat ResultType = "float"
	ResultBool  ResultType = "bool"
	ResultRef   ResultType = "ref"
)

func (r ResultType) valid() bool {
	switch r {
	case ResultVoid, ResultInt, ResultFloat, ResultBool, ResultRef:
		return true
	}
	return false
}

// Hooks are optional callbacks keyed on the green arguments.
type Hooks struct {
	// LocationLabel renders the green key for logs and diagnostics.
	LocationLabel func(greens []object.Value) string

	// UniqueID gives the location a stable numeric id.
	UniqueID func(greens []object.Value) int64

	// ConfirmEnter may veto entering or compiling code at this location.
	ConfirmEnter func(greens, reds []object.Value) bool

	// CanNeverInline marks locations whose nested activations must always
	// stay interpreted.
	CanNeverInline func(greens []object.Value) bool

	// ShouldUnrollOnce asks the recorder to cover two iterations before
	// committing a trace.
	ShouldUnrollOnce func(greens []object.Value) bool
}

// Descriptor is the static description of one hot loop. It is created once
// at build time and not modified afterwards.
type Descriptor struct {
	Name      string
	Greens    []string
	Reds      []string
	Result    ResultType
	Hooks     Hooks
	Recursive bool
}

// Params returns greens followed by reds: the portal's formal parameters.
func (d *Descriptor) Params() []string {
	out := make([]string, 0, len(d.Greens)+len(d.Reds))
	out = append(out, d.Greens...)
	return append(out, d.Reds...)
}

// Arity is len(Greens)+len(Reds).
func (d *Descriptor) Arity() int { return len(d.Greens) + len(d.Reds) }

// Split cuts an argument vector into its green and red parts.
func (d *Descriptor) Split(args []object.Value) (greens, reds []object.Value, err error) {
	if len(args) != d.Arity() {
		return nil, nil, fmt.Errorf("portal %s expects %d arguments, got %d", d.Name, d.Arity(), len(args))
	}
	n := len(d.Greens)
	return args[:n:n], args[n:], nil
}

// Validate checks the descriptor on its own. Cross-descriptor and
// graph-level checks are the rewriter's job.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return diagnostics.NewError(diagnostics.ErrB005, "", "portal descriptor without a name")
	}
	if strings.ContainsRune(d.Name, '$') {
		return diagnostics.NewError(diagnostics.ErrB005, d.Name, "portal name must not contain '$'")
	}
	if d.Result == "" {
		d.Result = ResultVoid
	}
	if !d.Result.valid() {
		return diagnostics.NewError(diagnostics.ErrB005, d.Name, "unknown result type %q", d.Result)
	}
	if len(d.Reds) == 0 && len(d.Greens) == 0 {
		return diagnostics.NewError(diagnostics.ErrB004, d.Name, "portal has no green or red variables")
	}
	seen := make(map[string]string)
	check := func(names []string, color string) error {
		for _, n := range names {
			if n == "" {
				return diagnostics.NewError(diagnostics.ErrB004, d.Name, "empty %s variable name", color)
			}
			if prev, dup := seen[n]; dup {
				if prev == color {
					return diagnostics.NewError(diagnostics.ErrB004, d.Name, "%s variable %q listed twice", color, n)
				}
				return diagnostics.NewError(diagnostics.ErrB004, d.Name, "variable %q is both green and red", n)
			}
			seen[n] = color
		}
		return nil
	}
	if err := check(d.Greens, "green"); err != nil {
		return err
	}
	return check(d.Reds, "red")
}

// Label renders the location of greens, falling back to the portal name and
// the green values.
func (d *Descriptor) Label(greens []object.Value) string {
	if d.Hooks.LocationLabel != nil {
		return d.Hooks.LocationLabel(greens)
	}
	if len(greens) == 0 {
		return d.Name
	}
	parts := make([]string, len(greens))
	for i, g := range greens {
		parts[i] = d.Greens[i] + "=" + g.Inspect()
	}
	return d.Name + "(" + strings.Join(parts, ", ") + ")"
}

// UniqueID returns the hook's id for greens, or -1 without a hook.
func (d *Descriptor) UniqueID(greens []object.Value) int64 {
	if d.Hooks.UniqueID != nil {
		return d.Hooks.UniqueID(greens)
	}
	return -1
}

// ConfirmEnter defaults to true.
func (d *Descriptor) ConfirmEnter(greens, reds []object.Value) bool {
	if d.Hooks.ConfirmEnter != nil {
		return d.Hooks.ConfirmEnter(greens, reds)
	}
	return true
}

// CanNeverInline defaults to false.
func (d *Descriptor) CanNeverInline(greens []object.Value) bool {
	if d.Hooks.CanNeverInline != nil {
		return d.Hooks.CanNeverInline(greens)
	}
	return false
}

// ShouldUnrollOnce defaults to false.
func (d *Descriptor) ShouldUnrollOnce(greens []object.Value) bool {
	if d.Hooks.ShouldUnrollOnce != nil {
		return d.Hooks.ShouldUnrollOnce(greens)
	}
	return false
}

// GreenKey identifies a compiled location: the portal plus its greens.
func (d *Descriptor) GreenKey(greens []object.Value) string {
	return d.Name + "/" + object.Key(greens)
}
