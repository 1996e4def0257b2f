package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/somombo/impalab"
	"github.com/somombo/impalab/internal/logging"
	"github.com/somombo/impalab/internal/manifest"
	"github.com/somombo/impalab/internal/orchestrator"
)

const runHelp = `impalab run [-flags] [-- generator-passthrough-args...]

Resolves a RunPlan from the manifest (plus any overrides) and
orchestrates one benchmark run: pipes the generator's stdout to every
selected algorithm's stdin and collects their timing output on the
orchestrator's own stdout.

Exit status: 0 on success, 1 if any child exited non-zero, 2 on an
orchestrator-side error (bad flags, missing manifest entry, spawn or
pipe IO failure).
`

func cmdRun(ctx context.Context, log *logging.Logger, args []string) error {
	fset := flag.NewFlagSet("run", flag.ExitOnError)
	generator := fset.String("generator", "", `manifest component name of the generator, or "none"`)
	manifestPath := fset.String("manifest-path", "impa_manifest.json", "path to the manifest produced by impalab build")
	seedFlag := fset.Uint64("seed", 0, "fixed seed to pass to the generator (if unset, a fresh random seed is drawn)")
	generatorOverride := fset.String("generator-override-path", "", "path overriding the generator's manifest run command")

	var algos impalab.AlgorithmSelection
	fset.Var(algorithmSelectionFlag{sel: &algos}, "algorithms", "repeatable lang=fn1,fn2 algorithm selection")
	var algoOverrides map[string]impalab.RunCommand
	fset.Var(pathMapFlag{m: &algoOverrides}, "algorithm-override-paths", "repeatable lang=path override for an algorithm's run command")

	fset.Usage = usage(fset, runHelp)
	fset.Parse(args)

	if *generator == "" {
		return usageError(fset, "missing required -generator flag")
	}
	if len(algos) == 0 {
		return usageError(fset, "missing required -algorithms flag")
	}

	var seed *uint64
	fset.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			v := *seedFlag
			seed = &v
		}
	})

	m, err := manifest.Load(*manifestPath)
	if err != nil {
		return err
	}

	opts := orchestrator.Options{
		GeneratorName:      *generator,
		Algorithms:         algos,
		AlgorithmOverrides: algoOverrides,
	}
	if *generatorOverride != "" {
		opts.GeneratorOverride = &impalab.RunCommand{Command: *generatorOverride}
	}

	plan, err := orchestrator.Resolve(m, opts)
	if err != nil {
		return err
	}

	result, err := orchestrator.Run(ctx, orchestrator.Config{
		Plan:        plan,
		Seed:        seed,
		Passthrough: fset.Args(),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Log:         log,
	})
	if err != nil {
		return err
	}
	if code := result.ExitCode(); code != 0 {
		return &exitCodeError{code: code, err: fmt.Errorf("run: %s", result.Summary())}
	}
	return nil
}
