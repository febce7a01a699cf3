package quasi

import (
	"errors"
	"io"
	"log/slog"
	"sort"

	"github.com/funvibe/portaljit/internal/object"
	"github.com/google/uuid"
)

var (
	// ErrStaleMonitor is returned when registering against a monitor that
	// has already been invalidated and replaced.
	ErrStaleMonitor = errors.New("quasi: monitor is stale")

	// ErrDeadDependent is returned when registering a dependent that has
	// already been invalidated.
	ErrDeadDependent = errors.New("quasi: dependent is dead")
)

// Stats counts registry activity.
type Stats struct {
	Monitors      int // monitors ever created
	Registrations int
	Invalidations int // monitor generations ended
	FanOut        int // dependents killed by invalidations
	Compressions  int
}

type unitDeps struct {
	dep      Dependent
	monitors map[*FieldMonitor]struct{}
}

// Registry is the side table mapping monitored locations to their current
// monitor, and compiled units to the monitors they depend on.
//
// A Registry is owned by one JIT session and is not safe for concurrent
// use: every call must happen under the session's mutator lock.
type Registry struct {
	monitors      map[Key]*FieldMonitor
	units         map[uuid.UUID]*unitDeps
	compressLimit int
	stats         Stats
	log           *slog.Logger

	// OnInvalidate, when set, is called once per invalidated monitor
	// generation with the number of dependents that died.
	OnInvalidate func(key Key, generation uint64, killed []Dependent)
}

func NewRegistry(compressLimit int, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if compressLimit <= 0 {
		compressLimit = 1
	}
	return &Registry{
		monitors:      make(map[Key]*FieldMonitor),
		units:         make(map[uuid.UUID]*unitDeps),
		compressLimit: compressLimit,
		log:           log,
	}
}

// SetCompressLimit changes the limit given to monitors created from now on.
func (r *Registry) SetCompressLimit(n int) {
	if n <= 0 {
		n = 1
	}
	r.compressLimit = n
}

func (r *Registry) CompressLimit() int { return r.compressLimit }

func (r *Registry) Stats() Stats { return r.stats }

// GetOrCreateMonitor returns the live monitor for key, creating the first
// generation on first use. It never returns an invalidated monitor.
func (r *Registry) GetOrCreateMonitor(key Key) *FieldMonitor {
	if m, ok := r.monitors[key]; ok && m.Valid() {
		return m
	}
	var gen uint64 = 1
	if old, ok := r.monitors[key]; ok {
		gen = old.generation + 1
	}
	m := newMonitor(key, gen, r.compressLimit)
	r.monitors[key] = m
	r.stats.Monitors++
	return m
}

// MonitorFor is GetOrCreateMonitor for obj.field.
func (r *Registry) MonitorFor(obj object.Identity, field string) *FieldMonitor {
	return r.GetOrCreateMonitor(KeyOf(obj, field))
}

// Monitor returns the current monitor for key without creating one.
func (r *Registry) Monitor(key Key) (*FieldMonitor, bool) {
	m, ok := r.monitors[key]
	return m, ok
}

// Register records that dep relies on m. Registering twice is a no-op.
func (r *Registry) Register(dep Dependent, m *FieldMonitor) error {
	if !m.Valid() || r.monitors[m.key] != m {
		return ErrStaleMonitor
	}
	if !dep.Valid() {
		return ErrDeadDependent
	}
	id := dep.DependentID()
	ud, ok := r.units[id]
	if !ok {
		ud = &unitDeps{dep: dep, monitors: make(map[*FieldMonitor]struct{})}
		r.units[id] = ud
	}
	if _, dup := ud.monitors[m]; dup {
		return nil
	}
	ud.monitors[m] = struct{}{}
	m.dependents = append(m.dependents, dep)
	r.stats.Registrations++

	if len(m.dependents) > m.limit {
		before := len(m.dependents)
		m.compress()
		r.stats.Compressions++
		r.log.Debug("quasi.compress", "key", m.key.String(), "before", before,
			"after", len(m.dependents), "limit", m.limit)
	}
	return nil
}

// Invalidate ends the current generation of key: the monitor is marked
// invalid, every dependent is invalidated and dropped from the other
// monitors it was registered with, and a fresh monitor is installed.
// It fans out even when the written value equals the old one. It returns
// the number of dependents that were alive and are now dead.
func (r *Registry) Invalidate(key Key) int {
	m, ok := r.monitors[key]
	if !ok || !m.Valid() {
		return 0
	}
	m.valid.Store(false)
	r.stats.Invalidations++

	var killed []Dependent
	for _, d := range m.dependents {
		if d.Invalidate("quasi-immutable write to " + key.String()) {
			killed = append(killed, d)
		}
		id := d.DependentID()
		if ud, ok := r.units[id]; ok {
			for other := range ud.monitors {
				if other != m {
					other.removeDependent(id)
				}
			}
			delete(r.units, id)
		}
	}
	m.dependents = nil
	r.stats.FanOut += len(killed)

	fresh := newMonitor(key, m.generation+1, r.compressLimit)
	r.monitors[key] = fresh
	r.stats.Monitors++

	r.log.Debug("quasi.invalidate", "key", key.String(), "generation", m.generation, "killed", len(killed))
	if r.OnInvalidate != nil {
		r.OnInvalidate(key, m.generation, killed)
	}
	return len(killed)
}

// InvalidateField is the write barrier for obj.field. Writes to locations
// nobody ever monitored cost one map lookup.
func (r *Registry) InvalidateField(obj object.Identity, field string) int {
	return r.Invalidate(KeyOf(obj, field))
}

// InvalidateElement is the write barrier for list[index].
func (r *Registry) InvalidateElement(list object.Identity, index int) int {
	return r.Invalidate(ElementKey(list.ObjectID(), index))
}

// Forget drops all bookkeeping for a dependent that was discarded or
// evicted without a monitor firing.
func (r *Registry) Forget(id uuid.UUID) {
	ud, ok := r.units[id]
	if !ok {
		return
	}
	for m := range ud.monitors {
		m.removeDependent(id)
	}
	delete(r.units, id)
}

// Dependencies lists the monitored locations id currently depends on, in a
// stable order. A dead or unknown unit has none.
func (r *Registry) Dependencies(id uuid.UUID) []Key {
	ud, ok := r.units[id]
	if !ok || !ud.dep.Valid() {
		return nil
	}
	keys := make([]Key, 0, len(ud.monitors))
	for m := range ud.monitors {
		if m.Valid() {
			keys = append(keys, m.key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Dependents lists the live dependents of the current monitor for key.
func (r *Registry) Dependents(key Key) []uuid.UUID {
	m, ok := r.monitors[key]
	if !ok {
		return nil
	}
	var out []uuid.UUID
	for _, d := range m.dependents {
		if d.Valid() {
			out = append(out, d.DependentID())
		}
	}
	return out
}
