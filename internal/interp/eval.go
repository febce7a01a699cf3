package interp

import (
	"github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/object"
)

func (in *Interpreter) eval(f *frame, e flowgraph.Expr) (object.Value, error) {
	switch e := e.(type) {
	case *flowgraph.Const:
		return e.Value, nil

	case *flowgraph.Local:
		v, ok := f.locals[e.Name]
		if !ok {
			return nil, newRuntimeError(f.fn.Name, "undefined local %s", e.Name)
		}
		return v, nil

	case *flowgraph.BinOp:
		return in.evalBinOp(f, e)

	case *flowgraph.Not:
		v, err := in.eval(f, e.X)
		if err != nil {
			return nil, err
		}
		return object.NativeBool(!object.Truthy(v)), nil

	case *flowgraph.GetField:
		_, v, err := in.readField(f, e)
		return v, err

	case *flowgraph.GetItem:
		return in.evalGetItem(f, e)

	case *flowgraph.Len:
		v, err := in.eval(f, e.Seq)
		if err != nil {
			return nil, err
		}
		switch x := v.(type) {
		case *object.List:
			return object.NewInt(int64(x.Len())), nil
		case *object.String:
			return object.NewInt(int64(len(x.Value))), nil
		}
		return nil, newRuntimeError(f.fn.Name, "len of %s", v.Type())

	case *flowgraph.Call:
		fn, ok := in.prog.Functions[e.Func]
		if !ok {
			return nil, newRuntimeError(f.fn.Name, "undefined function %s", e.Func)
		}
		args, err := in.evalArgs(f, e.Args)
		if err != nil {
			return nil, err
		}
		v, err := in.callFunction(fn, args)
		f.barrier()
		return v, err

	case *flowgraph.New:
		if _, ok := in.prog.Types[e.TypeName]; !ok {
			return nil, newRuntimeError(f.fn.Name, "undefined type %s", e.TypeName)
		}
		inst := object.NewInstance(e.TypeName)
		for _, fi := range e.Fields {
			v, err := in.eval(f, fi.Value)
			if err != nil {
				return nil, err
			}
			inst.Fields[fi.Name] = v
		}
		return inst, nil

	case *flowgraph.NewList:
		items, err := in.evalArgs(f, e.Items)
		if err != nil {
			return nil, err
		}
		return object.NewList(items), nil

	case *flowgraph.RunPortal:
		if in.portals == nil {
			return nil, newRuntimeError(f.fn.Name, "no portal runner for %s", e.Portal)
		}
		args, err := in.evalArgs(f, e.Args)
		if err != nil {
			return nil, err
		}
		v, err := in.portals.Call(e.Portal, args)
		f.barrier()
		return v, err
	}
	return nil, newRuntimeError(f.fn.Name, "unsupported expression %T", e)
}

func (in *Interpreter) evalArgs(f *frame, es []flowgraph.Expr) ([]object.Value, error) {
	out := make([]object.Value, len(es))
	for i, e := range es {
		v, err := in.eval(f, e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// readField evaluates obj.field. In a portal frame, reads of
// quasi-immutable fields go through the hooks.
func (in *Interpreter) readField(f *frame, e *flowgraph.GetField) (*object.Instance, object.Value, error) {
	obj, err := in.eval(f, e.Obj)
	if err != nil {
		return nil, nil, err
	}
	inst, ok := obj.(*object.Instance)
	if !ok {
		return nil, nil, newRuntimeError(f.fn.Name, "cannot read field %s of %s", e.Field, obj.Type())
	}
	live, ok := inst.Fields[e.Field]
	if !ok {
		return nil, nil, newRuntimeError(f.fn.Name, "%s has no field %s", inst.TypeName, e.Field)
	}
	if f.hooks != nil && in.prog.QuasiKind(inst.TypeName, e.Field).IsQuasi() {
		return inst, f.hooks.QuasiField(inst, e.Field, live), nil
	}
	return inst, live, nil
}

func (in *Interpreter) evalGetItem(f *frame, e *flowgraph.GetItem) (object.Value, error) {
	gf, direct := e.Seq.(*flowgraph.GetField)
	if !direct || f.hooks == nil {
		list, idx, err := in.evalListIndex(f, e.Seq, e.Index)
		if err != nil {
			return nil, err
		}
		return list.Items[idx], nil
	}

	inst, seq, err := in.readField(f, gf)
	if err != nil {
		return nil, err
	}
	list, idx, err := in.listIndex(f, seq, e.Index)
	if err != nil {
		return nil, err
	}
	live := list.Items[idx]
	if in.prog.QuasiKind(inst.TypeName, gf.Field) == flowgraph.QuasiSequence {
		return f.hooks.QuasiItem(inst, gf.Field, list, idx, live), nil
	}
	return live, nil
}

func (in *Interpreter) evalListIndex(f *frame, seqExpr, indexExpr flowgraph.Expr) (*object.List, int, error) {
	seq, err := in.eval(f, seqExpr)
	if err != nil {
		return nil, 0, err
	}
	return in.listIndex(f, seq, indexExpr)
}

func (in *Interpreter) listIndex(f *frame, seq object.Value, indexExpr flowgraph.Expr) (*object.List, int, error) {
	list, ok := seq.(*object.List)
	if !ok {
		return nil, 0, newRuntimeError(f.fn.Name, "cannot index %s", seq.Type())
	}
	iv, err := in.eval(f, indexExpr)
	if err != nil {
		return nil, 0, err
	}
	i, ok := iv.(*object.Integer)
	if !ok {
		return nil, 0, newRuntimeError(f.fn.Name, "list index must be INTEGER, got %s", iv.Type())
	}
	if i.Value < 0 || i.Value >= int64(list.Len()) {
		return nil, 0, &object.Raised{Value: object.NewException("IndexError", "list index out of range")}
	}
	return list, int(i.Value), nil
}
