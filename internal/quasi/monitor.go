package quasi

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Dependent is anything whose correctness relies on a monitored value staying
// unchanged: in practice a compiled unit, or a trace still being recorded.
type Dependent interface {
	DependentID() uuid.UUID
	Valid() bool
	// Invalidate marks the dependent dead for good and reports whether it
	// was still alive.
	Invalidate(reason string) bool
}

// FieldMonitor guards one generation of one monitored location. Once
// invalidated it stays invalid; the registry installs a new monitor with the
// next generation number in its place.
type FieldMonitor struct {
	key        Key
	generation uint64
	valid      atomic.Bool
	dependents []Dependent
	limit      int
}

func newMonitor(key Key, generation uint64, limit int) *FieldMonitor {
	m := &FieldMonitor{key: key, generation: generation, limit: limit}
	m.valid.Store(true)
	return m
}

func (m *FieldMonitor) Key() Key { return m.key }

func (m *FieldMonitor) Generation() uint64 { return m.generation }

// Valid is what compiled code checks in its guard. The flag is atomic so
// that an invalidation is visible to the next entry check with
// release/acquire ordering.
func (m *FieldMonitor) Valid() bool { return m.valid.Load() }

// DependentCount is the length of the dependent list, dead entries included.
func (m *FieldMonitor) DependentCount() int { return len(m.dependents) }

// Limit is the current compress limit of this monitor.
func (m *FieldMonitor) Limit() int { return m.limit }

func (m *FieldMonitor) hasDependent(id uuid.UUID) bool {
	for _, d := range m.dependents {
		if d.DependentID() == id {
			return true
		}
	}
	return false
}

func (m *FieldMonitor) removeDependent(id uuid.UUID) {
	out := m.dependents[:0]
	for _, d := range m.dependents {
		if d.DependentID() != id {
			out = append(out, d)
		}
	}
	for i := len(out); i < len(m.dependents); i++ {
		m.dependents[i] = nil
	}
	m.dependents = out
}

// compress drops dead dependents and raises the limit so that a list full of
// live units is not rescanned on every registration.
func (m *FieldMonitor) compress() {
	out := m.dependents[:0]
	for _, d := range m.dependents {
		if d.Valid() {
			out = append(out, d)
		}
	}
	for i := len(out); i < len(m.dependents); i++ {
		m.dependents[i] = nil
	}
	m.dependents = out
	if 2*len(out) > m.limit {
		m.limit = 2 * len(out)
	}
}
