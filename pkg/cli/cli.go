// Package cli implements the portaljit command line: it runs the bundled
// sample programs under the JIT control plane, dumps their flow graphs
// before and after rewriting, and reports what the JIT did.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/funvibe/portaljit/internal/config"
	"github.com/funvibe/portaljit/internal/diagnostics"
	"github.com/funvibe/portaljit/internal/flowgraph"
	"github.com/funvibe/portaljit/internal/jit"
	"github.com/funvibe/portaljit/internal/journal"
	"github.com/funvibe/portaljit/internal/object"
	"github.com/funvibe/portaljit/internal/samples"
	"github.com/mattn/go-isatty"
)

// Exit codes
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitMismatch = 3
)

const usage = `Usage: portaljit <command> [flags] [sample]

Commands:
  list                 list the bundled samples
  run  [flags] sample  run a sample under the JIT and check its result
  dump [flags] sample  print a sample's flow graph
  help                 show this help

Run 'portaljit <command> -h' for the flags of a command.
`

// Main is the entry point of cmd/portaljit.
func Main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes one command and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return ExitUsage
	}
	switch args[0] {
	case "list":
		return runList(stdout)
	case "run":
		return runSample(args[1:], stdout, stderr)
	case "dump":
		return runDump(args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return ExitOK
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
	return ExitUsage
}

func runList(stdout io.Writer) int {
	for _, name := range samples.Names() {
		s, err := samples.Build(name)
		if err != nil {
			fmt.Fprintf(stdout, "%-10s (broken: %v)\n", name, err)
			continue
		}
		fmt.Fprintf(stdout, "%-10s %s\n", name, s.Description)
	}
	return ExitOK
}

type runFlags struct {
	configPath    string
	threshold     int
	traceLimit    int
	capacity      int
	disable       bool
	journalPath   string
	journalDriver string
	snapshotPath  string
	stats         bool
	events        bool
	logLevel      string
	logFormat     string
	repeat        int
}

func parseRunFlags(args []string, stderr io.Writer) (*runFlags, []string, error) {
	f := &runFlags{}
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "portaljit.yaml to load (default: searched upwards from the working directory)")
	fs.IntVar(&f.threshold, "threshold", 0, "warm-up threshold, overrides jit.threshold")
	fs.IntVar(&f.traceLimit, "trace-limit", 0, "longest trace in iterations, overrides jit.trace_limit")
	fs.IntVar(&f.capacity, "capacity", 0, "compiled-unit store capacity, overrides jit.unit_capacity")
	fs.BoolVar(&f.disable, "disable", false, "interpret only, never compile")
	fs.StringVar(&f.journalPath, "journal", "", "journal database file or DSN, overrides journal.path")
	fs.StringVar(&f.journalDriver, "journal-driver", "", "sqlite, mysql or postgres, overrides journal.driver")
	fs.StringVar(&f.snapshotPath, "snapshot", "", "write a JSON snapshot of the session (.xz and .lz4 compress)")
	fs.BoolVar(&f.stats, "stats", false, "print session statistics")
	fs.BoolVar(&f.events, "events", false, "print the journal")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error, overrides log.level")
	fs.StringVar(&f.logFormat, "log-format", "", "text or json, overrides log.format")
	fs.IntVar(&f.repeat, "repeat", 1, "run the sample's main this many times in one session")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

// loadConfig reads the explicit config file, or the nearest portaljit.yaml,
// or falls back to the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		found, err := config.FindConfig(".")
		if err != nil {
			return nil, err
		}
		if found == "" {
			return config.Default(), nil
		}
		path = found
	}
	return config.LoadConfig(path)
}

func (f *runFlags) apply(cfg *config.Config) error {
	if f.threshold > 0 {
		cfg.JIT.Threshold = f.threshold
	}
	if f.traceLimit > 0 {
		cfg.JIT.TraceLimit = f.traceLimit
	}
	if f.capacity > 0 {
		cfg.JIT.UnitCapacity = f.capacity
	}
	if f.disable {
		cfg.JIT.Disabled = true
	}
	if f.journalPath != "" {
		cfg.Journal.Path = f.journalPath
	}
	if f.journalDriver != "" {
		cfg.Journal.Driver = f.journalDriver
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = strings.ToLower(f.logFormat)
	}
	return cfg.Validate()
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func runSample(args []string, stdout, stderr io.Writer) int {
	f, rest, err := parseRunFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}
	if len(rest) != 1 {
		fmt.Fprintln(stderr, "run: expected exactly one sample name")
		return ExitUsage
	}
	smp, err := samples.Build(rest[0])
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return ExitUsage
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return ExitFailure
	}
	if err := f.apply(cfg); err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return ExitUsage
	}
	log := newLogger(cfg, stderr)

	ctx := context.Background()
	mem := journal.NewMemorySink()
	jr := journal.New(log.With("component", "journal"), mem)
	defer func() {
		if err := jr.Close(); err != nil {
			log.Warn("closing journal", "error", err)
		}
	}()
	if cfg.Journal.Path != "" {
		sink, err := journal.Open(ctx, cfg.Journal.Driver, cfg.Journal.Path)
		if err != nil {
			fmt.Fprintf(stderr, "run: journal: %v\n", err)
			return ExitFailure
		}
		jr.Add(sink)
	}

	sess, err := jit.New(smp.Program, smp.Portals, jit.Options{Config: cfg, Log: log, Journal: jr})
	if err != nil {
		fmt.Fprintf(stderr, "run: %s: %v\n", smp.Name, err)
		if diagnostics.CodeOf(err) != "" {
			fmt.Fprintf(stderr, "  (%s)\n", diagnostics.CodeOf(err).Title())
		}
		return ExitFailure
	}

	pal := newPalette(stdout)
	code := ExitOK
	start := time.Now()
	for i := 0; i < f.repeat; i++ {
		got, err := sess.Call(smp.Main)
		if err != nil {
			var raised *object.Raised
			if errors.As(err, &raised) {
				fmt.Fprintf(stderr, "run: uncaught guest exception: %v\n", err)
			} else {
				fmt.Fprintf(stderr, "run: %v\n", err)
			}
			return ExitFailure
		}
		status := pal.green("ok")
		if got.Inspect() != smp.Want {
			status = pal.red("MISMATCH, want " + smp.Want)
			code = ExitMismatch
		}
		fmt.Fprintf(stdout, "%s() = %s  %s\n", smp.Main, got.Inspect(), status)
	}
	elapsed := time.Since(start)

	if f.stats {
		printStats(stdout, sess, elapsed)
	}
	if f.events {
		printEvents(stdout, mem.Events())
	}
	if f.snapshotPath != "" {
		n, err := journal.WriteSnapshotFile(f.snapshotPath, sess.Snapshot())
		if err != nil {
			fmt.Fprintf(stderr, "run: %v\n", err)
			return ExitFailure
		}
		fmt.Fprintf(stdout, "snapshot written to %s (%s)\n", f.snapshotPath, units.HumanSize(float64(n)))
	}
	return code
}

func printStats(w io.Writer, sess *jit.Session, elapsed time.Duration) {
	st := sess.Stats()
	fmt.Fprintf(w, "elapsed:   %s\n", units.HumanDuration(elapsed))
	fmt.Fprintf(w, "calls:     %d (%d guest calls, %d loop iterations)\n", st.Calls, st.Interp.Calls, st.Interp.Iterations)
	fmt.Fprintf(w, "transfer:  %s\n", st.Transfer)
	fmt.Fprintf(w, "oracle:    %s\n", st.Oracle)
	fmt.Fprintf(w, "registry:  monitors=%d registrations=%d invalidations=%d fan-out=%d compressions=%d\n",
		st.Registry.Monitors, st.Registry.Registrations, st.Registry.Invalidations, st.Registry.FanOut, st.Registry.Compressions)
	for _, u := range sess.Units() {
		state := "valid"
		if !u.Valid {
			state = "dead"
		}
		deps := make([]string, len(u.Dependencies))
		for i, k := range u.Dependencies {
			deps[i] = k.String()
		}
		fmt.Fprintf(w, "unit %s  %-28s %-5s length=%d entries=%d guards=%d deps=[%s]\n",
			u.ID, u.Location, state, u.Length, u.Entries, u.GuardChecks, strings.Join(deps, " "))
	}
}

func printEvents(w io.Writer, events []journal.Event) {
	for _, e := range events {
		fmt.Fprintf(w, "%4d %-16s %-28s %s\n", e.Seq, e.Kind, e.Location, e.Detail)
	}
}

func runDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	source := fs.Bool("source", false, "dump the program as built, before rewriting")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "dump: expected exactly one sample name")
		return ExitUsage
	}
	smp, err := samples.Build(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "dump: %v\n", err)
		return ExitUsage
	}
	if *source {
		fmt.Fprint(stdout, flowgraph.Dump(smp.Program))
		return ExitOK
	}
	sess, err := jit.New(smp.Program, smp.Portals, jit.Options{})
	if err != nil {
		fmt.Fprintf(stderr, "dump: %v\n", err)
		return ExitFailure
	}
	fmt.Fprint(stdout, flowgraph.Dump(sess.Program()))
	return ExitOK
}

// palette colours output only when it goes to a terminal.
type palette struct{ on bool }

func newPalette(w io.Writer) palette {
	f, ok := w.(*os.File)
	if !ok {
		return palette{}
	}
	return palette{on: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())}
}

func (p palette) wrap(code, s string) string {
	if !p.on {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (p palette) green(s string) string { return p.wrap("32", s) }
func (p palette) red(s string) string   { return p.wrap("31", s) }
