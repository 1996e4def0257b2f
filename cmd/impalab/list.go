package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/somombo/impalab"
	"github.com/somombo/impalab/internal/logging"
	"github.com/somombo/impalab/internal/manifest"
)

const listHelp = `impalab list [-flags]

Prints the manifest at -manifest-path, one component per line.
`

func cmdList(ctx context.Context, log *logging.Logger, args []string) error {
	fset := flag.NewFlagSet("list", flag.ExitOnError)
	manifestPath := fset.String("manifest-path", "impa_manifest.json", "path to the manifest to print")
	fset.Usage = usage(fset, listHelp)
	fset.Parse(args)

	m, err := manifest.Load(*manifestPath)
	if err != nil {
		return err
	}
	for _, e := range m.Entries() {
		lang := "-"
		if e.Kind == impalab.Algorithm {
			lang = e.Language
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", e.Name, e.Kind, lang, strings.Join(e.Run.Argv(), " "))
	}
	return nil
}
