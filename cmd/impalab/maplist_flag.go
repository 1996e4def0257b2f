package main

import (
	"fmt"
	"strings"

	"github.com/somombo/impalab"
)

// algorithmSelectionFlag accumulates repeated -algorithms lang=f1,f2
// occurrences into an impalab.AlgorithmSelection, preserving the
// order the flags were given in (spec.md §3: a RunPlan's algorithm
// order is fixed by the caller's selection).
type algorithmSelectionFlag struct {
	sel *impalab.AlgorithmSelection
}

func (f algorithmSelectionFlag) String() string {
	if f.sel == nil {
		return ""
	}
	parts := make([]string, 0, len(*f.sel))
	for _, lf := range *f.sel {
		parts = append(parts, lf.Language+"="+strings.Join(lf.Functions, ","))
	}
	return strings.Join(parts, " ")
}

func (f algorithmSelectionFlag) Set(s string) error {
	lang, csv, ok := strings.Cut(s, "=")
	if !ok || lang == "" {
		return fmt.Errorf("expected lang=fn1,fn2, got %q", s)
	}
	var functions []string
	for _, fn := range strings.Split(csv, ",") {
		if fn != "" {
			functions = append(functions, fn)
		}
	}
	*f.sel = append(*f.sel, impalab.LanguageFunctions{Language: lang, Functions: functions})
	return nil
}

// pathMapFlag accumulates repeated lang=path occurrences into a map,
// used for -algorithm-override-paths. Each override replaces the
// manifest's run command for that language with a bare executable
// invocation from the orchestrator's own working directory.
type pathMapFlag struct {
	m *map[string]impalab.RunCommand
}

func (f pathMapFlag) String() string { return "" }

func (f pathMapFlag) Set(s string) error {
	lang, path, ok := strings.Cut(s, "=")
	if !ok || lang == "" || path == "" {
		return fmt.Errorf("expected lang=path, got %q", s)
	}
	if *f.m == nil {
		*f.m = make(map[string]impalab.RunCommand)
	}
	(*f.m)[lang] = impalab.RunCommand{Command: path}
	return nil
}
