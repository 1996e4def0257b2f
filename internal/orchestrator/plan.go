package orchestrator

import (
	"fmt"

	"golang.org/x/xerrors"

	"github.com/somombo/impalab"
	"github.com/somombo/impalab/internal/manifest"
)

// GeneratorSpec is the resolved generator half of a RunPlan: either an
// explicit command, or None, the "no generator" sentinel (spec.md
// §3).
type GeneratorSpec struct {
	None bool
	Name string
	Run  impalab.RunCommand
}

// AlgorithmSpec is one resolved algorithm slot of a RunPlan.
type AlgorithmSpec struct {
	Language  string
	Run       impalab.RunCommand
	Functions []string
}

// RunPlan is the fully resolved topology for a single run (spec.md
// §3). Algorithms is ordered exactly as the caller's AlgorithmSelection
// was; that order determines spawn/drain order, not output order.
type RunPlan struct {
	Generator  GeneratorSpec
	Algorithms []AlgorithmSpec
}

// Options is everything the CLI gathers before a run (spec.md §6's
// `run` subcommand surface), independent of any particular flag
// parsing library.
type Options struct {
	// GeneratorName is a manifest component name, or "none".
	GeneratorName string
	Algorithms    impalab.AlgorithmSelection

	GeneratorOverride  *impalab.RunCommand
	AlgorithmOverrides map[string]impalab.RunCommand

	Passthrough []string
}

// Resolve composes a RunPlan from m plus opts, per spec.md §4.F step
// 1: CLI overrides replace a manifest entry's RunCommand for that
// name/language, running from the orchestrator's own working
// directory rather than any component directory.
func Resolve(m *manifest.Manifest, opts Options) (*RunPlan, error) {
	plan := &RunPlan{}

	if opts.GeneratorName == "none" {
		plan.Generator = GeneratorSpec{None: true}
	} else {
		run, err := resolveRun(m, opts.GeneratorName, opts.GeneratorOverride)
		if err != nil {
			return nil, &impalab.ResolutionError{What: fmt.Sprintf("generator %q", opts.GeneratorName), Err: err}
		}
		plan.Generator = GeneratorSpec{Name: opts.GeneratorName, Run: run}
	}

	seenLang := make(map[string]bool, len(opts.Algorithms))
	for _, lf := range opts.Algorithms {
		if seenLang[lf.Language] {
			return nil, &impalab.ResolutionError{
				What: fmt.Sprintf("algorithm(%s)", lf.Language),
				Err:  fmt.Errorf("language %q selected more than once", lf.Language),
			}
		}
		seenLang[lf.Language] = true

		override, hasOverride := opts.AlgorithmOverrides[lf.Language]
		var overridePtr *impalab.RunCommand
		if hasOverride {
			overridePtr = &override
		}
		run, err := resolveAlgorithmRun(m, lf.Language, overridePtr)
		if err != nil {
			return nil, &impalab.ResolutionError{What: fmt.Sprintf("algorithm(%s)", lf.Language), Err: err}
		}
		plan.Algorithms = append(plan.Algorithms, AlgorithmSpec{
			Language:  lf.Language,
			Run:       run,
			Functions: lf.Functions,
		})
	}

	return plan, nil
}

func resolveRun(m *manifest.Manifest, name string, override *impalab.RunCommand) (impalab.RunCommand, error) {
	if override != nil {
		return *override, nil
	}
	entry, ok := m.ByName(name)
	if !ok {
		return impalab.RunCommand{}, xerrors.Errorf("%q not found in manifest and no override supplied", name)
	}
	return entry.Run, nil
}

func resolveAlgorithmRun(m *manifest.Manifest, language string, override *impalab.RunCommand) (impalab.RunCommand, error) {
	if override != nil {
		return *override, nil
	}
	entry, ok := m.ByLanguage(language)
	if !ok {
		return impalab.RunCommand{}, xerrors.Errorf("language %q not found in manifest and no override supplied", language)
	}
	return entry.Run, nil
}
