package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/portaljit/internal/journal"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		args []string
		code int
	}{
		{nil, ExitUsage},
		{[]string{"help"}, ExitOK},
		{[]string{"frobnicate"}, ExitUsage},
		{[]string{"run"}, ExitUsage},
		{[]string{"run", "nosuchsample"}, ExitUsage},
		{[]string{"run", "-h"}, ExitOK},
		{[]string{"dump", "a", "b"}, ExitUsage},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			if code != tt.code {
				t.Errorf("exit code = %d, want %d", code, tt.code)
			}
		})
	}
}

func TestRun_List(t *testing.T) {
	code, out, _ := runCLI(t, "list")
	if code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	for _, name := range []string{"bytecode", "outcomes", "quasisum", "seqread"} {
		if !strings.Contains(out, name) {
			t.Errorf("list output misses %s:\n%s", name, out)
		}
	}
}

func TestRun_Samples(t *testing.T) {
	tests := []struct {
		sample string
		want   string
	}{
		{"quasisum", "main() = [700, 721, 749]  ok"},
		{"seqread", "main() = [115, 115, 50, 20]  ok"},
		{"outcomes", "main() = [0, -1, 465, 1]  ok"},
		{"bytecode", "main() = [30, 15]  ok"},
	}
	for _, tt := range tests {
		t.Run(tt.sample, func(t *testing.T) {
			code, out, errOut := runCLI(t, "run", "-log-level", "error", "-threshold", "2", tt.sample)
			if code != ExitOK {
				t.Fatalf("exit code = %d\nstderr:\n%s", code, errOut)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output:\n%s\nwant line %q", out, tt.want)
			}
		})
	}
}

func TestRun_StatsAndEvents(t *testing.T) {
	code, out, errOut := runCLI(t, "run", "-log-level", "error", "-stats", "-events", "-repeat", "2", "quasisum")
	if code != ExitOK {
		t.Fatalf("exit code = %d\nstderr:\n%s", code, errOut)
	}
	if strings.Count(out, "main() = [700, 721, 749]") != 2 {
		t.Errorf("expected two runs:\n%s", out)
	}
	for _, want := range []string{"elapsed:", "oracle:", "compiled=", "self-invalidated", "unit "} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
}

func TestRun_Disabled(t *testing.T) {
	code, out, _ := runCLI(t, "run", "-log-level", "error", "-disable", "-stats", "quasisum")
	if code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(out, "compiled=0") {
		t.Errorf("nothing should compile with -disable:\n%s", out)
	}
}

func TestRun_JournalAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "events.db")
	snap := filepath.Join(dir, "session.json.xz")

	code, out, errOut := runCLI(t, "run", "-log-level", "error", "-journal", db, "-snapshot", snap, "seqread")
	if code != ExitOK {
		t.Fatalf("exit code = %d\nstderr:\n%s", code, errOut)
	}
	if !strings.Contains(out, "snapshot written to") {
		t.Errorf("output:\n%s", out)
	}

	ctx := context.Background()
	sink, err := journal.OpenSQLite(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	counts, err := sink.CountByKind(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["compile"] == 0 || counts["invalidate"] == 0 {
		t.Errorf("journal counts = %v", counts)
	}

	data, err := journal.ReadSnapshotFile(snap)
	if err != nil {
		t.Fatal(err)
	}
	if data["calls"] != float64(1) {
		t.Errorf("snapshot calls = %v", data["calls"])
	}
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := "jit:\n  disabled: true\nlog:\n  level: error\n"
	if err := os.WriteFile(filepath.Join(dir, "portaljit.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("explicit", func(t *testing.T) {
		code, out, _ := runCLI(t, "run", "-config", filepath.Join(dir, "portaljit.yaml"), "-stats", "outcomes")
		if code != ExitOK || !strings.Contains(out, "compiled=0") {
			t.Errorf("code=%d output:\n%s", code, out)
		}
	})
	t.Run("found upwards", func(t *testing.T) {
		sub := filepath.Join(dir, "a", "b")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatal(err)
		}
		prevWD, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(sub); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(prevWD) })
		code, out, _ := runCLI(t, "run", "-stats", "outcomes")
		if code != ExitOK || !strings.Contains(out, "compiled=0") {
			t.Errorf("code=%d output:\n%s", code, out)
		}
	})
	t.Run("bad flag value", func(t *testing.T) {
		code, _, errOut := runCLI(t, "run", "-config", filepath.Join(dir, "portaljit.yaml"), "-log-format", "xml", "outcomes")
		if code != ExitUsage || !strings.Contains(errOut, "log.format") {
			t.Errorf("code=%d stderr:\n%s", code, errOut)
		}
	})
	t.Run("missing file", func(t *testing.T) {
		code, _, _ := runCLI(t, "run", "-config", filepath.Join(dir, "nope.yaml"), "outcomes")
		if code != ExitFailure {
			t.Errorf("code = %d, want %d", code, ExitFailure)
		}
	})
}

func TestRun_Dump(t *testing.T) {
	code, out, _ := runCLI(t, "dump", "quasisum")
	if code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{"func sum$portal(", "func sum$runner(", "invalidate"} {
		if !strings.Contains(out, want) {
			t.Errorf("rewritten dump misses %q:\n%s", want, out)
		}
	}

	code, out, _ = runCLI(t, "dump", "-source", "quasisum")
	if code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if strings.Contains(out, "$portal") {
		t.Errorf("source dump shows generated code:\n%s", out)
	}
}

func TestPalette(t *testing.T) {
	var buf bytes.Buffer
	if p := newPalette(&buf); p.green("ok") != "ok" {
		t.Error("a buffer is not a terminal")
	}
	p := palette{on: true}
	if got := p.red("x"); got != "\033[31mx\033[0m" {
		t.Errorf("red = %q", got)
	}
}
