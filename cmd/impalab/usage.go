package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

// usage builds a flag.FlagSet.Usage that prints header before the
// set's default flag listing, matching cmd/distri's per-verb -help
// output shape.
func usage(fset *flag.FlagSet, header string) func() {
	return func() {
		fmt.Fprint(os.Stderr, header)
		fmt.Fprintln(os.Stderr)
		fset.PrintDefaults()
	}
}

func usageError(fset *flag.FlagSet, msg string) error {
	fset.Usage()
	return &exitCodeError{code: 2, err: errors.New(msg)}
}
