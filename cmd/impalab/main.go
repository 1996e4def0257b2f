// Command impalab builds and runs micro-benchmark component trees
// (spec.md §6): `build` discovers components and writes the manifest,
// `run` orchestrates one benchmark invocation, `list` prints a
// manifest.
//
// Grounded on cmd/distri/distri.go's funcmain/verbs dispatch table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/somombo/impalab"
	"github.com/somombo/impalab/internal/logging"
)

// exitCodeError carries the process exit code a verb wants, per
// spec.md §6's 0/1/2 exit-status contract. Errors that don't wrap one
// of these exit 2, the orchestrator-side-failure default.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var ece *exitCodeError
	if errors.As(err, &ece) {
		return ece.code
	}
	return 2
}

type verb struct {
	fn func(ctx context.Context, log *logging.Logger, args []string) error
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func funcmain() error {
	flag.Parse()

	verbs := map[string]verb{
		"build": {cmdBuild},
		"run":   {cmdRun},
		"list":  {cmdList},
	}

	args := flag.Args()
	name := ""
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}
	v, ok := verbs[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "impalab [-flags] <command> [-flags] <args>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "\tbuild  - discover components and write the manifest\n")
		fmt.Fprintf(os.Stderr, "\trun    - orchestrate one benchmark run\n")
		fmt.Fprintf(os.Stderr, "\tlist   - print a manifest\n")
		return &exitCodeError{code: 2, err: fmt.Errorf("unknown command %q", name)}
	}

	log, err := logging.New()
	if err != nil {
		return err
	}
	impalab.RegisterAtExit(log.Close)

	ctx, canc := impalab.InterruptibleContext()
	defer canc()

	err = v.fn(ctx, log, args)
	if atErr := impalab.RunAtExit(); atErr != nil && err == nil {
		err = atErr
	}
	return err
}
