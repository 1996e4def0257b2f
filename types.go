// Package impalab holds the value types shared across the orchestration
// engine (manifest, discovery, launcher, fan-out, collector,
// orchestrator) plus a couple of small process-lifetime helpers
// (InterruptibleContext, RegisterAtExit) used by cmd/impalab.
package impalab

// ComponentKind distinguishes the two roles a component can play.
type ComponentKind int

const (
	// Generator components write test-case lines to stdout.
	Generator ComponentKind = iota
	// Algorithm components read test-case lines from stdin and emit
	// CSV timing lines to stdout.
	Algorithm
)

func (k ComponentKind) String() string {
	switch k {
	case Generator:
		return "generator"
	case Algorithm:
		return "algorithm"
	default:
		return "unknown"
	}
}

// ParseComponentKind parses the "type" field of a component descriptor
// or manifest entry.
func ParseComponentKind(s string) (ComponentKind, bool) {
	switch s {
	case "generator":
		return Generator, true
	case "algorithm":
		return Algorithm, true
	default:
		return 0, false
	}
}

// RunCommand is an executable path plus its argument vector. It is
// immutable once constructed; the child inherits the parent's
// environment unchanged.
type RunCommand struct {
	Command string
	Args    []string

	// Dir is the working directory the command should be run from. Empty
	// means the orchestrator's own current directory.
	Dir string
}

// Argv returns command followed by args, useful for logging.
func (r RunCommand) Argv() []string {
	return append([]string{r.Command}, r.Args...)
}

// Empty reports whether r has no command set, i.e. it was never resolved.
func (r RunCommand) Empty() bool {
	return r.Command == ""
}

// ManifestEntry is one resolved component: its name, kind, and (for
// algorithms) language, plus the command used to run it.
type ManifestEntry struct {
	Name     string
	Kind     ComponentKind
	Language string // required iff Kind == Algorithm
	Run      RunCommand
}

// BenchmarkEvent is the unit of the orchestrator's output stream.
type BenchmarkEvent struct {
	ID           string
	Language     string
	FunctionName string
	DurationNs   uint64
}

// AlgorithmSelection is the caller's chosen languages, in the order
// given, each with its ordered list of requested function names
// (spec.md §3). The order of entries fixes the order in which
// algorithms are spawned and drained within a RunPlan; it is
// preserved from the CLI's repeated --algorithms flag occurrences
// rather than collapsed into an unordered map.
type AlgorithmSelection []LanguageFunctions

// LanguageFunctions is one language's ordered function list.
type LanguageFunctions struct {
	Language  string
	Functions []string
}

// Languages returns the selection's languages, in order.
func (s AlgorithmSelection) Languages() []string {
	out := make([]string, len(s))
	for i, lf := range s {
		out[i] = lf.Language
	}
	return out
}
