package warmup

import (
	"errors"

	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/quasi"
)

// recorder registers a pending unit against every quasi-immutable location
// the traced iteration reads, and bakes the values it saw.
type recorder struct {
	unit     *Unit
	registry *quasi.Registry
	err      error
}

func (r *recorder) depend(key quasi.Key, live object.Value) {
	err := r.registry.Register(r.unit, r.registry.GetOrCreateMonitor(key))
	switch {
	case err == nil:
		r.unit.bake(key, live)
	case errors.Is(err, quasi.ErrDeadDependent):
		// written during recording; discarded at commit
	default:
		if r.err == nil {
			r.err = err
		}
	}
}

func (r *recorder) QuasiField(obj *object.Instance, field string, live object.Value) object.Value {
	r.depend(quasi.KeyOf(obj, field), live)
	return live
}

func (r *recorder) QuasiItem(obj *object.Instance, field string, list *object.List, index int, live object.Value) object.Value {
	r.depend(quasi.ElementKey(list.ObjectID(), index), live)
	return live
}

func (r *recorder) Barrier() {}

// compiledRun serves baked values to one run of a unit. The guard is
// checked at the first baked read of an iteration and again only after a
// barrier. Once it fails, the rest of the iteration reads live values.
type compiledRun struct {
	unit    *Unit
	oracle  *Oracle
	checked bool
	dirty   bool
	failed  bool
}

// startIteration arms the guard for a new iteration unless the loop-back
// check already covered it.
func (r *compiledRun) startIteration() {
	if !r.dirty {
		r.checked = false
	}
	r.dirty = false
}

func (r *compiledRun) check() bool {
	r.checked = true
	r.unit.GuardChecks++
	r.oracle.stats.GuardChecks++
	if r.unit.Valid() {
		return true
	}
	r.failed = true
	r.unit.GuardFailures++
	r.oracle.stats.GuardFailures++
	r.oracle.emit(Event{Kind: EventGuardFailure, Portal: r.unit.desc.Name,
		Location: r.unit.label, Unit: r.unit.id, Detail: r.unit.reason})
	return false
}

func (r *compiledRun) read(key quasi.Key, live object.Value) object.Value {
	if r.failed {
		return live
	}
	if !r.checked && !r.check() {
		return live
	}
	if v, ok := r.unit.baked[key]; ok {
		return v
	}
	return live
}

func (r *compiledRun) QuasiField(obj *object.Instance, field string, live object.Value) object.Value {
	return r.read(quasi.KeyOf(obj, field), live)
}

func (r *compiledRun) QuasiItem(obj *object.Instance, field string, list *object.List, index int, live object.Value) object.Value {
	return r.read(quasi.ElementKey(list.ObjectID(), index), live)
}

func (r *compiledRun) Barrier() {
	r.checked = false
	r.dirty = true
}
