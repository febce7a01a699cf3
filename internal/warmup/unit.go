package warmup

import (
	"sort"
	"sync/atomic"

	"github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/portal"
	"github.com/funvibe/portaljit/internal/quasi"
	"github.com/google/uuid"
)

// Unit is a compiled unit: a recorded trace of the portal body specialised
// to one green key, with the quasi-immutable values it read baked in.
//
// A Unit is born pending while its trace is recorded. If it survives
// recording it is committed to the Store. Once invalidated it never becomes
// valid again, and its id is never handed out again.
type Unit struct {
	id       uuid.UUID
	desc     *portal.Descriptor
	fn       *flowgraph.Function
	greens   []object.Value
	path     [][]object.Value
	key      string
	label    string
	baked    map[quasi.Key]object.Value
	valid    atomic.Bool
	reason   string
	lastUsed uint64

	Entries       int
	Iterations    int
	GuardChecks   int
	GuardFailures int
}

func newUnit(d *portal.Descriptor, fn *flowgraph.Function, greens []object.Value) *Unit {
	u := &Unit{
		id:     uuid.New(),
		desc:   d,
		fn:     fn,
		greens: greens,
		path:   [][]object.Value{greens},
		key:    d.GreenKey(greens),
		label:  d.Label(greens),
		baked:  make(map[quasi.Key]object.Value),
	}
	u.valid.Store(true)
	return u
}

func (u *Unit) ID() uuid.UUID                 { return u.id }
func (u *Unit) DependentID() uuid.UUID        { return u.id }
func (u *Unit) Valid() bool                   { return u.valid.Load() }
func (u *Unit) Label() string                 { return u.label }
func (u *Unit) Key() string                   { return u.key }
func (u *Unit) Portal() *portal.Descriptor    { return u.desc }
func (u *Unit) Greens() []object.Value        { return u.greens }
func (u *Unit) Function() *flowgraph.Function { return u.fn }

// Path is the sequence of green keys the trace goes through before it
// closes back on its start. It has length 1 for a simple loop.
func (u *Unit) Path() [][]object.Value { return u.path }

// Reason is why the unit was invalidated, or "" while it is valid.
func (u *Unit) Reason() string {
	if u.Valid() {
		return ""
	}
	return u.reason
}

// Invalidate kills the unit. Only the first call has an effect.
func (u *Unit) Invalidate(reason string) bool {
	if !u.valid.CompareAndSwap(true, false) {
		return false
	}
	u.reason = reason
	return true
}

// bake records the first value seen for key.
func (u *Unit) bake(key quasi.Key, v object.Value) {
	if _, ok := u.baked[key]; !ok {
		u.baked[key] = v
	}
}

// Baked returns the value baked for key.
func (u *Unit) Baked(key quasi.Key) (object.Value, bool) {
	v, ok := u.baked[key]
	return v, ok
}

// BakedKeys lists the baked locations in a stable order.
func (u *Unit) BakedKeys() []quasi.Key {
	keys := make([]quasi.Key, 0, len(u.baked))
	for k := range u.baked {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
