// Package warmup is the reference warm-up oracle and compiled-unit store.
//
// Nothing is compiled to machine code. A "compiled unit" is the portal body
// run through the interpreter with its quasi-immutable reads served from
// values baked in while the trace was recorded, behind the same guard a
// real backend would emit. That is enough to exercise every part of the
// control plane: thresholds, recording, dependency registration,
// invalidation, guard placement and exits back to the interpreter.
package warmup

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/funvibe/portaljit/internal/config"
	"github.com/funvibe/portaljit/internal/diagnostics"
	"github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/interp"
	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/portal"
	"github.com/funvibe/portaljit/internal/quasi"
	"github.com/funvibe/portaljit/internal/transfer"
	"github.com/google/uuid"
)

type EventKind string

const (
	EventCompile         EventKind = "compile"
	EventAbort           EventKind = "abort"
	EventSelfInvalidated EventKind = "self-invalidated"
	EventEvict           EventKind = "evict"
	EventGuardFailure    EventKind = "guard-failure"
)

// Event is a notable oracle decision, reported through Oracle.OnEvent.
type Event struct {
	Kind     EventKind
	Portal   string
	Location string
	Unit     uuid.UUID
	Detail   string
}

// Stats counts oracle activity.
type Stats struct {
	Compiled        int
	Aborted         int
	SelfInvalidated int
	Evicted         int
	Entries         int
	EntryFailures   int
	GuardChecks     int
	GuardFailures   int
	Recorded        int // iterations run under the recorder
	Interpreted     int
}

func (s Stats) String() string {
	return fmt.Sprintf("compiled=%d aborted=%d self-invalidated=%d evicted=%d entries=%d guard-checks=%d guard-failures=%d",
		s.Compiled, s.Aborted, s.SelfInvalidated, s.Evicted, s.Entries, s.GuardChecks, s.GuardFailures)
}

type Options struct {
	Threshold  int
	TraceLimit int
	Disabled   bool
	Log        *slog.Logger
}

// Oracle implements transfer.Oracle on top of the interpreter.
type Oracle struct {
	in         *interp.Interpreter
	registry   *quasi.Registry
	store      *Store
	portals    map[string]*flowgraph.Function
	counters   map[string]int
	threshold  int
	traceLimit int
	disabled   bool
	log        *slog.Logger
	stats      Stats

	OnEvent func(Event)
}

var _ transfer.Oracle = (*Oracle)(nil)

// NewOracle builds an oracle. portals maps each descriptor name to its
// extracted portal function.
func NewOracle(in *interp.Interpreter, registry *quasi.Registry, store *Store, portals map[string]*flowgraph.Function, opts Options) *Oracle {
	if opts.Threshold <= 0 {
		opts.Threshold = config.DefaultThreshold
	}
	if opts.TraceLimit <= 0 {
		opts.TraceLimit = config.DefaultTraceLimit
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o := &Oracle{
		in:         in,
		registry:   registry,
		store:      store,
		portals:    portals,
		counters:   make(map[string]int),
		threshold:  opts.Threshold,
		traceLimit: opts.TraceLimit,
		disabled:   opts.Disabled,
		log:        opts.Log,
	}
	store.OnEvict = func(u *Unit) {
		o.stats.Evicted++
		o.emit(Event{Kind: EventEvict, Portal: u.desc.Name, Location: u.label, Unit: u.id})
	}
	return o
}

func (o *Oracle) Stats() Stats { return o.stats }

func (o *Oracle) Store() *Store { return o.store }

// Counter returns the warm-up counter of a green key.
func (o *Oracle) Counter(d *portal.Descriptor, greens []object.Value) int {
	return o.counters[d.GreenKey(greens)]
}

func (o *Oracle) emit(e Event) {
	if o.OnEvent != nil {
		o.OnEvent(e)
	}
}

func (o *Oracle) portalFunction(d *portal.Descriptor) (*flowgraph.Function, error) {
	fn, ok := o.portals[d.Name]
	if !ok {
		return nil, diagnostics.NewError(diagnostics.ErrI001, d.Name, "no portal function")
	}
	return fn, nil
}

// ShouldCompile counts one arrival at the merge point and says yes once
// the threshold is reached.
func (o *Oracle) ShouldCompile(d *portal.Descriptor, greens []object.Value) bool {
	if o.disabled {
		return false
	}
	key := d.GreenKey(greens)
	o.counters[key]++
	return o.counters[key] >= o.threshold
}

func (o *Oracle) LookupCompiledUnit(d *portal.Descriptor, greens []object.Value) (transfer.Unit, bool) {
	u, ok := o.store.Get(d.GreenKey(greens))
	if !ok {
		return nil, false
	}
	return u, true
}

func (o *Oracle) RunInterpreted(d *portal.Descriptor, greens, reds []object.Value) (transfer.Signal, error) {
	fn, err := o.portalFunction(d)
	if err != nil {
		return nil, err
	}
	o.stats.Interpreted++
	return o.in.RunIteration(fn, greens, reds, nil)
}

// CompileAndRun records a trace starting at greens. Recording follows the
// portal through as many iterations as it takes to come back to greens (at
// most the trace limit), or twice around when the location asks to be
// unrolled once, then commits or discards the unit.
func (o *Oracle) CompileAndRun(d *portal.Descriptor, greens, reds []object.Value) (transfer.Signal, error) {
	fn, err := o.portalFunction(d)
	if err != nil {
		return nil, err
	}
	u := newUnit(d, fn, greens)
	rec := &recorder{unit: u, registry: o.registry}

	laps := 1
	if d.ShouldUnrollOnce(greens) {
		laps = 2
	}
	var (
		sig    transfer.Signal
		at     = greens
		closed = 0
		steps  = 0
		path   [][]object.Value
	)
	for closed < laps && steps < o.traceLimit {
		steps++
		o.stats.Recorded++
		sig, err = o.in.RunIteration(fn, at, reds, rec)
		if err != nil {
			o.discard(u, EventAbort, "error: "+err.Error())
			return nil, err
		}
		if closed == 0 {
			path = append(path, at)
		}
		c, ok := sig.(*transfer.Continue)
		if !ok || !u.Valid() {
			break
		}
		if object.EqualAll(c.Greens, greens) {
			closed++
		}
		at, reds = c.Greens, c.Reds
	}

	switch c, ok := sig.(*transfer.Continue); {
	case !u.Valid():
		o.stats.SelfInvalidated++
		o.discard(u, EventSelfInvalidated, u.reason)
	case !ok:
		o.stats.Aborted++
		o.discard(u, EventAbort, "trace left the loop: "+sig.String())
	case closed < laps || !object.EqualAll(c.Greens, greens):
		o.stats.Aborted++
		o.discard(u, EventAbort, fmt.Sprintf("trace did not close within %d iterations", o.traceLimit))
	case rec.err != nil:
		o.stats.Aborted++
		o.discard(u, EventAbort, rec.err.Error())
	default:
		u.path = path
		o.store.Put(u)
		o.stats.Compiled++
		o.log.Info("compiled unit", "portal", d.Name, "location", u.label,
			"unit", u.id, "baked", len(u.baked), "length", len(path))
		o.emit(Event{Kind: EventCompile, Portal: d.Name, Location: u.label, Unit: u.id,
			Detail: fmt.Sprintf("%d baked values, %d iterations", len(u.baked), len(path))})
	}
	return sig, nil
}

// discard drops a pending unit and lets the location warm up again.
func (o *Oracle) discard(u *Unit, kind EventKind, detail string) {
	u.Invalidate(string(kind))
	o.registry.Forget(u.id)
	delete(o.counters, u.key)
	o.log.Debug("trace discarded", "portal", u.desc.Name, "location", u.label,
		"unit", u.id, "kind", string(kind), "detail", detail)
	o.emit(Event{Kind: kind, Portal: u.desc.Name, Location: u.label, Unit: u.id, Detail: detail})
}

// RunCompiledUnit runs u until an iteration leaves its path, ends the
// activation, or fails a guard.
func (o *Oracle) RunCompiledUnit(tu transfer.Unit, reds []object.Value) (transfer.Signal, error) {
	u, ok := tu.(*Unit)
	if !ok {
		return nil, diagnostics.NewError(diagnostics.ErrI001, tu.Label(), "foreign compiled unit %T", tu)
	}
	u.Entries++
	o.stats.Entries++
	if !u.Valid() {
		o.stats.EntryFailures++
		return &transfer.Continue{Greens: u.greens, Reds: reds}, nil
	}

	run := &compiledRun{unit: u, oracle: o}
	at := 0
	for {
		run.startIteration()
		u.Iterations++
		sig, err := o.in.RunIteration(u.fn, u.path[at], reds, run)
		if err != nil {
			return nil, err
		}
		if run.failed {
			return sig, nil
		}
		c, ok := sig.(*transfer.Continue)
		if !ok {
			return sig, nil
		}
		next := (at + 1) % len(u.path)
		if !object.EqualAll(c.Greens, u.path[next]) {
			return sig, nil
		}
		if run.dirty && !run.check() {
			return sig, nil
		}
		at, reds = next, c.Reds
	}
}
