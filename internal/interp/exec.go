package interp

import (
	"errors"

	"github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/object"
)

func (in *Interpreter) execBlock(f *frame, stmts []flowgraph.Stmt) (flow, error) {
	for _, s := range stmts {
		fl, err := in.exec(f, s)
		if err != nil || fl != flowNext {
			return fl, err
		}
	}
	return flowNext, nil
}

func (in *Interpreter) exec(f *frame, s flowgraph.Stmt) (flow, error) {
	switch s := s.(type) {
	case *flowgraph.Assign:
		v, err := in.eval(f, s.Value)
		if err != nil {
			return flowNext, err
		}
		f.locals[s.Name] = v
		return flowNext, nil

	case *flowgraph.SetField:
		return flowNext, in.execSetField(f, s)

	case *flowgraph.SetItem:
		return flowNext, in.execSetItem(f, s)

	case *flowgraph.ExprStmt:
		_, err := in.eval(f, s.X)
		return flowNext, err

	case *flowgraph.If:
		cond, err := in.eval(f, s.Cond)
		if err != nil {
			return flowNext, err
		}
		if object.Truthy(cond) {
			return in.execBlock(f, s.Then)
		}
		return in.execBlock(f, s.Else)

	case *flowgraph.While:
		return in.execWhile(f, s)

	case *flowgraph.Break:
		return flowBreak, nil

	case *flowgraph.Continue:
		return flowContinue, nil

	case *flowgraph.Return:
		return in.execReturn(f, s)

	case *flowgraph.Raise:
		v, err := in.eval(f, s.Value)
		if err != nil {
			return flowNext, err
		}
		return flowNext, &object.Raised{Value: v}

	case *flowgraph.Try:
		return in.execTry(f, s)

	case *flowgraph.InvalidateField:
		obj, err := in.eval(f, s.Obj)
		if err != nil {
			return flowNext, err
		}
		id, ok := obj.(object.Identity)
		if !ok {
			return flowNext, newRuntimeError(f.fn.Name, "cannot invalidate field %s of %s", s.Field, obj.Type())
		}
		if in.registry != nil {
			in.registry.InvalidateField(id, s.Field)
		}
		in.stats.Invalidations++
		f.barrier()
		return flowNext, nil

	case *flowgraph.InvalidateItem:
		list, idx, err := in.evalListIndex(f, s.Seq, s.Index)
		if err != nil {
			return flowNext, err
		}
		if in.registry != nil {
			in.registry.InvalidateElement(list, idx)
		}
		in.stats.Invalidations++
		f.barrier()
		return flowNext, nil

	case *flowgraph.ContinuePortal:
		if !f.portal {
			return flowNext, newRuntimeError(f.fn.Name, "portal continuation outside a portal iteration")
		}
		args := make([]object.Value, len(s.Args))
		for i, name := range s.Args {
			v, ok := f.locals[name]
			if !ok {
				return flowNext, newRuntimeError(f.fn.Name, "undefined local %s", name)
			}
			args[i] = v
		}
		f.portalArgs = args
		return flowPortal, nil
	}
	return flowNext, newRuntimeError(f.fn.Name, "unsupported statement %T", s)
}

func (in *Interpreter) execWhile(f *frame, s *flowgraph.While) (flow, error) {
	for {
		cond, err := in.eval(f, s.Cond)
		if err != nil {
			return flowNext, err
		}
		if !object.Truthy(cond) {
			return flowNext, nil
		}
		fl, err := in.execBlock(f, s.Body)
		if err != nil {
			return flowNext, err
		}
		switch fl {
		case flowBreak:
			return flowNext, nil
		case flowReturn, flowPortal:
			return fl, nil
		}
	}
}

// execReturn handles `return f(args)` in a portal frame specially when f
// enters another portal: outside any Try body the call becomes a tail
// transfer.
func (in *Interpreter) execReturn(f *frame, s *flowgraph.Return) (flow, error) {
	if s.Value == nil {
		f.ret = nil
		return flowReturn, nil
	}
	if call, ok := s.Value.(*flowgraph.Call); ok && f.portal && f.tries == 0 {
		if target, ok := in.entries[call.Func]; ok {
			args, err := in.evalArgs(f, call.Args)
			if err != nil {
				return flowNext, err
			}
			f.nested = &nestedTransfer{portal: target, args: args}
			return flowReturn, nil
		}
	}
	v, err := in.eval(f, s.Value)
	if err != nil {
		return flowNext, err
	}
	f.ret = v
	return flowReturn, nil
}

func (in *Interpreter) execTry(f *frame, s *flowgraph.Try) (flow, error) {
	f.tries++
	fl, err := in.execBlock(f, s.Body)
	f.tries--
	if err == nil {
		return fl, nil
	}
	var raised *object.Raised
	if !errors.As(err, &raised) {
		return flowNext, err
	}
	if s.Catch != "" {
		f.locals[s.Catch] = raised.Value
	}
	return in.execBlock(f, s.Handler)
}

func (in *Interpreter) execSetField(f *frame, s *flowgraph.SetField) error {
	obj, err := in.eval(f, s.Obj)
	if err != nil {
		return err
	}
	inst, ok := obj.(*object.Instance)
	if !ok {
		return newRuntimeError(f.fn.Name, "cannot set field %s on %s", s.Field, obj.Type())
	}
	if in.prog.QuasiKind(inst.TypeName, s.Field) == flowgraph.Immutable {
		return newRuntimeError(f.fn.Name, "field %s of %s is immutable", s.Field, inst.TypeName)
	}
	v, err := in.eval(f, s.Value)
	if err != nil {
		return err
	}
	inst.Fields[s.Field] = v
	return nil
}

func (in *Interpreter) execSetItem(f *frame, s *flowgraph.SetItem) error {
	list, idx, err := in.evalListIndex(f, s.Seq, s.Index)
	if err != nil {
		return err
	}
	v, err := in.eval(f, s.Value)
	if err != nil {
		return err
	}
	list.Items[idx] = v
	return nil
}
