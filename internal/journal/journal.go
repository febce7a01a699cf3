// Package journal keeps an append-only log of JIT events: compiles, aborted
// and self-invalidated traces, invalidations, evictions and guard failures.
// Events fan out to any number of sinks.
package journal

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// Event is one journal entry.
type Event struct {
	Seq      int64
	Time     time.Time
	Kind     string
	Portal   string
	Location string
	Unit     string
	Detail   string
}

// Sink stores events.
type Sink interface {
	Record(e Event) error
	Close() error
}

type Journal struct {
	mu    sync.Mutex
	sinks []Sink
	seq   int64
	log   *slog.Logger
	now   func() time.Time
}

func New(log *slog.Logger, sinks ...Sink) *Journal {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Journal{sinks: sinks, log: log, now: time.Now}
}

// Add attaches another sink.
func (j *Journal) Add(s Sink) {
	j.mu.Lock()
	j.sinks = append(j.sinks, s)
	j.mu.Unlock()
}

// Record numbers e, stamps it and hands it to every sink. A failing sink is
// logged and does not stop the others.
func (j *Journal) Record(e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	e.Seq = j.seq
	if e.Time.IsZero() {
		e.Time = j.now()
	}
	for _, s := range j.sinks {
		if err := s.Record(e); err != nil {
			j.log.Warn("journal sink failed", "kind", e.Kind, "error", err)
		}
	}
}

// Len is the number of events recorded so far.
func (j *Journal) Len() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Close closes every sink and returns the first error.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var first error
	for _, s := range j.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.sinks = nil
	return first
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (m *MemorySink) Record(e Event) error {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

func (m *MemorySink) Close() error { return nil }

// Events returns a copy of what was recorded.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Count returns how many events of kind were recorded.
func (m *MemorySink) Count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
