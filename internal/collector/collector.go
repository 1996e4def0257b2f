// Package collector implements the Output Collector (spec.md §4.E): a
// dedicated worker per algorithm, reading its stdout line by line,
// parsing the CSV contract, and emitting BenchmarkEvents through a
// serialized sink so that two workers never interleave bytes within
// one output line (spec.md §5, "Shared resource policy").
package collector

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/somombo/impalab"
)

// SerialWriter guards a shared io.Writer (the orchestrator's own
// stdout or stderr) with a mutex, the "lightweight mutual-exclusion
// discipline" spec.md §5 calls for.
type SerialWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSerialWriter wraps w for safe concurrent line writes.
func NewSerialWriter(w io.Writer) *SerialWriter {
	return &SerialWriter{w: w}
}

// WriteLine writes line followed by a newline as a single locked
// operation.
func (s *SerialWriter) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, line+"\n")
	return err
}

// Emit serializes one BenchmarkEvent as "id,language,function_name,duration"
// and writes it atomically to the sink.
func Emit(sink *SerialWriter, e impalab.BenchmarkEvent) error {
	return sink.WriteLine(fmt.Sprintf("%s,%s,%s,%d", e.ID, e.Language, e.FunctionName, e.DurationNs))
}

// Warner receives non-fatal parse warnings; internal/logging.Logger
// satisfies it via Warnf.
type Warner interface {
	Warnf(format string, args ...interface{})
}

// Collect reads stdout line by line, parses each as
// "id,function_name,duration_nanos", tags it with language, and emits
// it through sink. It returns the count of events emitted and, if
// reading stdout itself failed (as opposed to a line failing to
// parse), a *impalab.PipeIOError.
//
// Per-algorithm output preserves strict FIFO into the event stream
// (spec.md §4.E, §5): Collect never reorders lines.
func Collect(language string, stdout io.Reader, sink *SerialWriter, warn Warner) (emitted int, err error) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		ev, ok := parseLine(line)
		if !ok {
			warn.Warnf("collector(%s): malformed output line, dropping: %q", language, truncate(line, 200))
			continue
		}
		ev.Language = language
		if werr := Emit(sink, ev); werr != nil {
			return emitted, &impalab.PipeIOError{Worker: "collector:" + language, Err: werr}
		}
		emitted++
	}
	if serr := scanner.Err(); serr != nil {
		return emitted, &impalab.PipeIOError{Worker: "collector:" + language, Err: serr}
	}
	return emitted, nil
}

// ForwardStderr copies child's stderr to sink, one line at a time,
// each prefixed with the given label (internal/orchestrator passes an
// algorithm's language, or the generator's name). It is best-effort
// (spec.md §4.E): a failure here never fails the run.
func ForwardStderr(language string, stderr io.Reader, sink *SerialWriter) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		sink.WriteLine(fmt.Sprintf("[%s] %s", language, scanner.Text()))
	}
}

// parseLine implements the exactly-two-commas contract of spec.md
// §4.E. encoding/csv is deliberately not used: the contract has no
// quoting or escaping, and a general CSV parser would accept (and
// silently reinterpret) input this format forbids.
func parseLine(line string) (impalab.BenchmarkEvent, bool) {
	if strings.Count(line, ",") != 2 {
		return impalab.BenchmarkEvent{}, false
	}
	first := strings.IndexByte(line, ',')
	second := strings.IndexByte(line[first+1:], ',') + first + 1

	id := line[:first]
	fn := line[first+1 : second]
	durStr := line[second+1:]

	if id == "" || fn == "" || durStr == "" {
		return impalab.BenchmarkEvent{}, false
	}
	dur, err := strconv.ParseUint(durStr, 10, 64)
	if err != nil {
		return impalab.BenchmarkEvent{}, false
	}
	return impalab.BenchmarkEvent{ID: id, FunctionName: fn, DurationNs: dur}, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
