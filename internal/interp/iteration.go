package interp

import (
	"errors"

	"github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/transfer"
)

// Hooks observe the portal frame of one iteration. The value returned by a
// read hook is the value the iteration uses; returning live is always
// sound.
type Hooks interface {
	// QuasiField is called for every read of a quasi-immutable field.
	QuasiField(obj *object.Instance, field string, live object.Value) object.Value

	// QuasiItem is called for obj.field[index] when field is a
	// quasi-immutable sequence. The read of obj.field itself has already
	// gone through QuasiField.
	QuasiItem(obj *object.Instance, field string, list *object.List, index int, live object.Value) object.Value

	// Barrier is reported after an invalidation or a call made from the
	// portal frame: anything read before it may have changed.
	Barrier()
}

// RunIteration runs one iteration of the extracted portal function fn and
// converts its completion into a signal. hooks may be nil.
func (in *Interpreter) RunIteration(fn *flowgraph.Function, greens, reds []object.Value, hooks Hooks) (transfer.Signal, error) {
	args := make([]object.Value, 0, len(greens)+len(reds))
	args = append(args, greens...)
	args = append(args, reds...)
	if len(args) != len(fn.Params) {
		return nil, newRuntimeError(fn.Name, "expects %d arguments, got %d", len(fn.Params), len(args))
	}
	in.stats.Iterations++

	f := newFrame(fn, args, hooks)
	f.portal = true

	fl, err := in.execBlock(f, fn.Body)
	if err != nil {
		var raised *object.Raised
		if errors.As(err, &raised) {
			return &transfer.RaiseObject{Exception: raised.Value}, nil
		}
		return nil, err
	}

	switch fl {
	case flowPortal:
		n := len(greens)
		if len(f.portalArgs) < n {
			return nil, newRuntimeError(fn.Name, "portal continuation with %d arguments", len(f.portalArgs))
		}
		return &transfer.Continue{Greens: f.portalArgs[:n:n], Reds: f.portalArgs[n:]}, nil
	case flowReturn:
		if f.nested != nil {
			return &transfer.NestedCall{Portal: f.nested.portal, Args: f.nested.args}, nil
		}
		if f.ret == nil {
			return &transfer.ReturnVoid{}, nil
		}
		return &transfer.Return{Value: f.ret}, nil
	case flowNext:
		return &transfer.ReturnVoid{}, nil
	}
	return nil, newRuntimeError(fn.Name, "%s outside a loop", fl)
}
