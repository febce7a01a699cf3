// Package jit wires the control plane into a session: one rewritten
// program, its dependency registry, the warm-up oracle and compiled-unit
// store, the control-transfer handler and the interpreter, all serialized
// by a single mutator lock.
package jit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/funvibe/portaljit/internal/config"
	"github.com/funvibe/portaljit/internal/diagnostics"
	"github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/interp"
	"github.com/funvibe/portaljit/internal/journal"
	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/portal"
	"github.com/funvibe/portaljit/internal/quasi"
	"github.com/funvibe/portaljit/internal/rewrite"
	"github.com/funvibe/portaljit/internal/transfer"
	"github.com/funvibe/portaljit/internal/warmup"
	"github.com/google/uuid"
)

// Options configures a Session. Zero values pick the defaults.
type Options struct {
	Config  *config.Config
	Log     *slog.Logger
	Journal *journal.Journal
}

// Session runs one program under the JIT control plane.
type Session struct {
	mu sync.Mutex

	cfg      *config.Config
	log      *slog.Logger
	journal  *journal.Journal
	source   *flowgraph.Program
	result   *rewrite.Result
	registry *quasi.Registry
	store    *warmup.Store
	oracle   *warmup.Oracle
	handler  *transfer.Handler
	interp   *interp.Interpreter
	calls    int
}

// New rewrites prog for descs and builds a session around the result.
// Build-time problems come back as *diagnostics.DiagnosticError.
func New(prog *flowgraph.Program, descs []*portal.Descriptor, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	jr := opts.Journal
	if jr == nil {
		jr = journal.New(log)
	}

	res, err := rewrite.New(log.With("component", "rewrite")).Rewrite(prog, descs)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:     cfg,
		log:     log,
		journal: jr,
		source:  prog,
		result:  res,
	}

	s.registry = quasi.NewRegistry(cfg.JIT.CompressLimit, log.With("component", "quasi"))
	s.registry.OnInvalidate = s.invalidated

	s.interp = interp.New(res.Program, s.registry)
	s.interp.SetEntries(res.Entries)

	s.store = warmup.NewStore(cfg.JIT.UnitCapacity, s.registry, log.With("component", "store"))

	portals := make(map[string]*flowgraph.Function, len(res.Portals))
	for name, p := range res.Portals {
		portals[name] = res.Program.Functions[p.Function]
	}
	s.oracle = warmup.NewOracle(s.interp, s.registry, s.store, portals, warmup.Options{
		Threshold:  cfg.JIT.Threshold,
		TraceLimit: cfg.JIT.TraceLimit,
		Disabled:   cfg.JIT.Disabled,
		Log:        log.With("component", "oracle"),
	})
	s.oracle.OnEvent = s.oracleEvent

	s.handler = transfer.NewHandler(s.oracle, descs, log.With("component", "transfer"))
	s.interp.SetPortalRunner(s.handler)

	log.Debug("session ready", "portals", res.PortalNames(),
		"invalidations", res.Invalidations, "temps", res.Temps)
	return s, nil
}

// Call runs the guest function name under the mutator lock. A guest
// exception is returned as *object.Raised holding the raised value.
func (s *Session) Call(name string, args ...object.Value) (object.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	v, err := s.interp.Call(name, args)
	if err != nil {
		var raised *object.Raised
		code := diagnostics.CodeOf(err)
		switch {
		case errors.As(err, &raised):
			s.log.Debug("guest exception", "func", name, "error", err)
		case code != "" && code.Fatal():
			s.log.Error("contract violation", "func", name, "code", string(code), "error", err)
		default:
			s.log.Warn("call failed", "func", name, "error", err)
		}
		return nil, err
	}
	return v, nil
}

func (s *Session) invalidated(key quasi.Key, generation uint64, killed []quasi.Dependent) {
	for _, dep := range killed {
		e := journal.Event{
			Kind:   "invalidate",
			Unit:   dep.DependentID().String(),
			Detail: fmt.Sprintf("%s generation %d", key, generation),
		}
		if u, ok := dep.(*warmup.Unit); ok {
			e.Portal = u.Portal().Name
			e.Location = u.Label()
		}
		s.log.Info("unit invalidated", "portal", e.Portal, "location", e.Location,
			"unit", e.Unit, "key", key.String())
		s.journal.Record(e)
	}
}

func (s *Session) oracleEvent(e warmup.Event) {
	s.journal.Record(journal.Event{
		Kind:     string(e.Kind),
		Portal:   e.Portal,
		Location: e.Location,
		Unit:     e.Unit.String(),
		Detail:   e.Detail,
	})
}

// Program returns the rewritten program.
func (s *Session) Program() *flowgraph.Program { return s.result.Program }

// Source returns the program the session was built from.
func (s *Session) Source() *flowgraph.Program { return s.source }

// Result returns what the rewriter generated.
func (s *Session) Result() *rewrite.Result { return s.result }

func (s *Session) Config() *config.Config { return s.cfg }

func (s *Session) Journal() *journal.Journal { return s.journal }

// UnitInfo describes a stored compiled unit.
type UnitInfo struct {
	ID            uuid.UUID
	Portal        string
	Location      string
	Valid         bool
	Length        int
	Entries       int
	Iterations    int
	GuardChecks   int
	GuardFailures int
	Dependencies  []quasi.Key
}

// Units lists the compiled units currently in the store.
func (s *Session) Units() []UnitInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	units := s.store.Units()
	out := make([]UnitInfo, 0, len(units))
	for _, u := range units {
		out = append(out, UnitInfo{
			ID:            u.ID(),
			Portal:        u.Portal().Name,
			Location:      u.Label(),
			Valid:         u.Valid(),
			Length:        len(u.Path()),
			Entries:       u.Entries,
			Iterations:    u.Iterations,
			GuardChecks:   u.GuardChecks,
			GuardFailures: u.GuardFailures,
			Dependencies:  s.registry.Dependencies(u.ID()),
		})
	}
	return out
}

// Unit returns a stored unit by id.
func (s *Session) Unit(id uuid.UUID) (*warmup.Unit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ByID(id)
}

// Dependencies lists the monitored locations unit id currently depends on.
func (s *Session) Dependencies(id uuid.UUID) []quasi.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Dependencies(id)
}

// Monitor returns the current monitor of key, if one was ever created.
func (s *Session) Monitor(key quasi.Key) (*quasi.FieldMonitor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Monitor(key)
}

// SetCompressLimit changes the dependent-list limit of monitors created
// from now on.
func (s *Session) SetCompressLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry.SetCompressLimit(n)
}

// Stats gathers the counters of every part of the session.
type Stats struct {
	Calls    int
	Units    int
	Transfer transfer.Stats
	Oracle   warmup.Stats
	Registry quasi.Stats
	Interp   interp.Stats
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Calls:    s.calls,
		Units:    s.store.Len(),
		Transfer: s.handler.Stats(),
		Oracle:   s.oracle.Stats(),
		Registry: s.registry.Stats(),
		Interp:   s.interp.Stats(),
	}
}

// Snapshot renders the session state as a tree of plain values, ready for
// journal.Snapshot.
func (s *Session) Snapshot() map[string]interface{} {
	st := s.Stats()
	units := s.Units()

	unitList := make([]interface{}, 0, len(units))
	for _, u := range units {
		deps := make([]interface{}, 0, len(u.Dependencies))
		for _, k := range u.Dependencies {
			deps = append(deps, k.String())
		}
		unitList = append(unitList, map[string]interface{}{
			"id":             u.ID.String(),
			"portal":         u.Portal,
			"location":       u.Location,
			"valid":          u.Valid,
			"length":         u.Length,
			"entries":        u.Entries,
			"iterations":     u.Iterations,
			"guard_checks":   u.GuardChecks,
			"guard_failures": u.GuardFailures,
			"dependencies":   deps,
		})
	}

	portals := make([]interface{}, 0, len(s.result.Portals))
	for _, name := range s.result.PortalNames() {
		portals = append(portals, name)
	}

	signals := make(map[string]interface{})
	for k := transfer.KindContinue; k <= transfer.KindNested; k++ {
		signals[k.String()] = st.Transfer.Count(k)
	}

	return map[string]interface{}{
		"calls":   st.Calls,
		"portals": portals,
		"units":   unitList,
		"signals": signals,
		"oracle": map[string]interface{}{
			"compiled":         st.Oracle.Compiled,
			"aborted":          st.Oracle.Aborted,
			"self_invalidated": st.Oracle.SelfInvalidated,
			"evicted":          st.Oracle.Evicted,
			"entries":          st.Oracle.Entries,
			"guard_checks":     st.Oracle.GuardChecks,
			"guard_failures":   st.Oracle.GuardFailures,
		},
		"registry": map[string]interface{}{
			"monitors":      st.Registry.Monitors,
			"registrations": st.Registry.Registrations,
			"invalidations": st.Registry.Invalidations,
			"fan_out":       st.Registry.FanOut,
			"compressions":  st.Registry.Compressions,
		},
	}
}
