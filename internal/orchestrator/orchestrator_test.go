package orchestrator_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/somombo/impalab"
	"github.com/somombo/impalab/internal/logging"
	"github.com/somombo/impalab/internal/manifest"
	"github.com/somombo/impalab/internal/orchestrator"
)

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("requires /bin/sh")
	}
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New()
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return log
}

// writeScript writes an executable shell script under dir/name and
// returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	contents := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(contents), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func shRun(path string) impalab.RunCommand {
	return impalab.RunCommand{Command: "/bin/sh", Args: []string{path}}
}

// S1 from spec.md §8: single generator, single algorithm.
func TestRunSingleAlgorithm(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()

	gen := writeScript(t, dir, "gen.sh", `printf 'a 1\nb 2\n'`)
	algo := writeScript(t, dir, "algo.sh", `
while read -r id n; do
  printf '%s,f,7\n' "$id"
done
`)

	m := manifest.New()
	mustAdd(t, m, impalab.ManifestEntry{Name: "g", Kind: impalab.Generator, Run: shRun(gen)})
	mustAdd(t, m, impalab.ManifestEntry{Name: "x", Kind: impalab.Algorithm, Language: "L", Run: shRun(algo)})

	plan, err := orchestrator.Resolve(m, orchestrator.Options{
		GeneratorName: "g",
		Algorithms:    impalab.AlgorithmSelection{{Language: "L", Functions: []string{"f"}}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var stdout, stderr bytes.Buffer
	seed := uint64(1)
	result, err := orchestrator.Run(context.Background(), orchestrator.Config{
		Plan: plan, Seed: &seed, Stdout: &stdout, Stderr: &stderr, Log: testLogger(t),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode() != 0 {
		t.Fatalf("ExitCode() = %d, want 0; stderr:\n%s", result.ExitCode(), stderr.String())
	}

	lines := splitNonEmpty(stdout.String())
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), lines)
	}
	if lines[0] != "a,L,f,7" || lines[1] != "b,L,f,7" {
		t.Errorf("lines = %v, want [a,L,f,7 b,L,f,7]", lines)
	}
}

// S2 from spec.md §8: fan-out to two algorithms, each tagged with its
// own language.
func TestRunFanOutToTwoAlgorithms(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()

	gen := writeScript(t, dir, "gen.sh", `printf 'a 1\nb 2\n'`)
	algoX := writeScript(t, dir, "x.sh", `
while read -r id n; do printf '%s,f1,10\n' "$id"; done
`)
	algoY := writeScript(t, dir, "y.sh", `
while read -r id n; do printf '%s,f2,20\n' "$id"; done
`)

	m := manifest.New()
	mustAdd(t, m, impalab.ManifestEntry{Name: "g", Kind: impalab.Generator, Run: shRun(gen)})
	mustAdd(t, m, impalab.ManifestEntry{Name: "x", Kind: impalab.Algorithm, Language: "L1", Run: shRun(algoX)})
	mustAdd(t, m, impalab.ManifestEntry{Name: "y", Kind: impalab.Algorithm, Language: "L2", Run: shRun(algoY)})

	plan, err := orchestrator.Resolve(m, orchestrator.Options{
		GeneratorName: "g",
		Algorithms: impalab.AlgorithmSelection{
			{Language: "L1", Functions: []string{"f1"}},
			{Language: "L2", Functions: []string{"f2"}},
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var stdout, stderr bytes.Buffer
	result, err := orchestrator.Run(context.Background(), orchestrator.Config{
		Plan: plan, Stdout: &stdout, Stderr: &stderr, Log: testLogger(t),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode() != 0 {
		t.Fatalf("ExitCode() = %d, want 0; stderr:\n%s", result.ExitCode(), stderr.String())
	}

	lines := splitNonEmpty(stdout.String())
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4: %q", len(lines), lines)
	}

	var l1, l2 []string
	for _, l := range lines {
		switch {
		case strings.Contains(l, ",L1,"):
			l1 = append(l1, l)
		case strings.Contains(l, ",L2,"):
			l2 = append(l2, l)
		}
	}
	if len(l1) != 2 || len(l2) != 2 {
		t.Fatalf("per-language counts = %d, %d, want 2, 2", len(l1), len(l2))
	}
	if l1[0] != "a,L1,f1,10" || l1[1] != "b,L1,f1,10" {
		t.Errorf("L1 order = %v", l1)
	}
	if l2[0] != "a,L2,f2,20" || l2[1] != "b,L2,f2,20" {
		t.Errorf("L2 order = %v", l2)
	}
}

// S3 from spec.md §8: generator=none, the algorithm produces its own id.
func TestRunGeneratorNone(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	algo := writeScript(t, dir, "z.sh", `printf 'self,g,3\n'`)

	m := manifest.New()
	mustAdd(t, m, impalab.ManifestEntry{Name: "z", Kind: impalab.Algorithm, Language: "L", Run: shRun(algo)})

	plan, err := orchestrator.Resolve(m, orchestrator.Options{
		GeneratorName: "none",
		Algorithms:    impalab.AlgorithmSelection{{Language: "L", Functions: []string{"g"}}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var stdout, stderr bytes.Buffer
	result, err := orchestrator.Run(context.Background(), orchestrator.Config{
		Plan: plan, Stdout: &stdout, Stderr: &stderr, Log: testLogger(t),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode() != 0 {
		t.Fatalf("ExitCode() = %d, want 0", result.ExitCode())
	}
	lines := splitNonEmpty(stdout.String())
	if len(lines) != 1 || lines[0] != "self,L,g,3" {
		t.Fatalf("lines = %v, want [self,L,g,3]", lines)
	}
}

// S4 from spec.md §8: an algorithm exits early mid-stream; the run
// still completes and reports a non-zero exit status, but already-
// emitted events survive.
func TestRunAlgorithmCrashMidStream(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()

	gen := writeScript(t, dir, "gen.sh", `
i=0
while [ "$i" -lt 1000 ]; do
  printf 'id%d 1\n' "$i"
  i=$((i + 1))
done
`)
	algo := writeScript(t, dir, "algo.sh", `
i=0
while read -r id n; do
  printf '%s,f,1\n' "$id"
  i=$((i + 1))
  if [ "$i" -ge 10 ]; then
    exit 3
  fi
done
`)

	m := manifest.New()
	mustAdd(t, m, impalab.ManifestEntry{Name: "g", Kind: impalab.Generator, Run: shRun(gen)})
	mustAdd(t, m, impalab.ManifestEntry{Name: "x", Kind: impalab.Algorithm, Language: "L", Run: shRun(algo)})

	plan, err := orchestrator.Resolve(m, orchestrator.Options{
		GeneratorName: "g",
		Algorithms:    impalab.AlgorithmSelection{{Language: "L", Functions: []string{"f"}}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var stdout, stderr bytes.Buffer
	result, err := orchestrator.Run(context.Background(), orchestrator.Config{
		Plan: plan, Stdout: &stdout, Stderr: &stderr, Log: testLogger(t),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode() != 1 {
		t.Fatalf("ExitCode() = %d, want 1 (algorithm crashed)", result.ExitCode())
	}
	lines := splitNonEmpty(stdout.String())
	if len(lines) < 10 {
		t.Fatalf("got %d events, want at least 10", len(lines))
	}
}

// S6 from spec.md §8: a fixed seed produces identical event
// sequences across two invocations.
func TestRunSeedReproducibility(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()

	// A deterministic generator keyed off the injected --seed flag.
	gen := writeScript(t, dir, "gen.sh", `
seed=0
for arg in "$@"; do
  case "$arg" in
    --seed=*) seed="${arg#--seed=}" ;;
  esac
done
printf 'a %s\nb %s\n' "$seed" "$seed"
`)
	algo := writeScript(t, dir, "algo.sh", `
while read -r id n; do printf '%s,f,%s\n' "$id" "$n"; done
`)

	m := manifest.New()
	mustAdd(t, m, impalab.ManifestEntry{Name: "g", Kind: impalab.Generator, Run: shRun(gen)})
	mustAdd(t, m, impalab.ManifestEntry{Name: "x", Kind: impalab.Algorithm, Language: "L", Run: shRun(algo)})

	plan, err := orchestrator.Resolve(m, orchestrator.Options{
		GeneratorName: "g",
		Algorithms:    impalab.AlgorithmSelection{{Language: "L", Functions: []string{"f"}}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	run := func() []string {
		var stdout, stderr bytes.Buffer
		seed := uint64(42)
		result, err := orchestrator.Run(context.Background(), orchestrator.Config{
			Plan: plan, Seed: &seed, Stdout: &stdout, Stderr: &stderr, Log: testLogger(t),
		})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if result.SeedUsed != 42 {
			t.Fatalf("SeedUsed = %d, want 42", result.SeedUsed)
		}
		return splitNonEmpty(stdout.String())
	}

	first := run()
	second := run()
	sort.Strings(first)
	sort.Strings(second)
	if strings.Join(first, "|") != strings.Join(second, "|") {
		t.Errorf("runs diverged:\n%v\n%v", first, second)
	}
}

func mustAdd(t *testing.T, m *manifest.Manifest, e impalab.ManifestEntry) {
	t.Helper()
	if err := m.Add(e); err != nil {
		t.Fatalf("Add(%s): %v", e.Name, err)
	}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
