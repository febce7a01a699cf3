package warmup

import (
	"io"
	"log/slog"
	"sort"

	"github.com/funvibe/portaljit/internal/quasi"
	"github.com/google/btree"
	"github.com/google/uuid"
)

type lruEntry struct {
	tick uint64
	unit *Unit
}

// Store holds committed units by green key. A btree ordered by last use
// gives the eviction order; when the store is over capacity the least
// recently used unit is invalidated and dropped.
type Store struct {
	capacity int
	byKey    map[string]*Unit
	byID     map[uuid.UUID]*Unit
	lru      *btree.BTreeG[lruEntry]
	tick     uint64
	registry *quasi.Registry
	log      *slog.Logger
	evicted  int

	// OnEvict is called for every unit dropped for capacity.
	OnEvict func(u *Unit)
}

func NewStore(capacity int, registry *quasi.Registry, log *slog.Logger) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		capacity: capacity,
		byKey:    make(map[string]*Unit),
		byID:     make(map[uuid.UUID]*Unit),
		lru: btree.NewG[lruEntry](8, func(a, b lruEntry) bool {
			return a.tick < b.tick
		}),
		registry: registry,
		log:      log,
	}
}

func (s *Store) Len() int { return len(s.byKey) }

func (s *Store) Capacity() int { return s.capacity }

// Evicted counts units dropped for capacity.
func (s *Store) Evicted() int { return s.evicted }

// Get returns the valid unit for key and marks it used. An invalidated unit
// found under key is dropped on the way.
func (s *Store) Get(key string) (*Unit, bool) {
	u, ok := s.byKey[key]
	if !ok {
		return nil, false
	}
	if !u.Valid() {
		s.remove(u)
		return nil, false
	}
	s.touch(u)
	return u, true
}

// ByID finds a stored unit, valid or not.
func (s *Store) ByID(id uuid.UUID) (*Unit, bool) {
	u, ok := s.byID[id]
	return u, ok
}

// Put commits u under its green key, replacing whatever was there.
func (s *Store) Put(u *Unit) {
	if old, ok := s.byKey[u.key]; ok {
		old.Invalidate("replaced")
		s.remove(old)
	}
	s.byKey[u.key] = u
	s.byID[u.id] = u
	s.touch(u)

	for len(s.byKey) > s.capacity {
		oldest, ok := s.lru.Min()
		if !ok {
			break
		}
		s.evict(oldest.unit)
	}
}

// Units returns all stored units ordered by label.
func (s *Store) Units() []*Unit {
	out := make([]*Unit, 0, len(s.byKey))
	for _, u := range s.byKey {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].label != out[j].label {
			return out[i].label < out[j].label
		}
		return out[i].key < out[j].key
	})
	return out
}

// LeastRecent returns the stored units from least to most recently used.
func (s *Store) LeastRecent() []*Unit {
	out := make([]*Unit, 0, s.lru.Len())
	s.lru.Ascend(func(e lruEntry) bool {
		out = append(out, e.unit)
		return true
	})
	return out
}

func (s *Store) touch(u *Unit) {
	if u.lastUsed != 0 {
		s.lru.Delete(lruEntry{tick: u.lastUsed})
	}
	s.tick++
	u.lastUsed = s.tick
	s.lru.ReplaceOrInsert(lruEntry{tick: u.lastUsed, unit: u})
}

func (s *Store) evict(u *Unit) {
	s.evicted++
	u.Invalidate("evicted")
	s.remove(u)
	s.log.Debug("evicted unit", "unit", u.id, "location", u.label)
	if s.OnEvict != nil {
		s.OnEvict(u)
	}
}

func (s *Store) remove(u *Unit) {
	if u.lastUsed != 0 {
		s.lru.Delete(lruEntry{tick: u.lastUsed})
		u.lastUsed = 0
	}
	if s.byKey[u.key] == u {
		delete(s.byKey, u.key)
	}
	delete(s.byID, u.id)
	if s.registry != nil {
		s.registry.Forget(u.id)
	}
}
