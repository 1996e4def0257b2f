package main

import (
	"context"
	"flag"

	"github.com/somombo/impalab/internal/discovery"
	"github.com/somombo/impalab/internal/env"
	"github.com/somombo/impalab/internal/logging"
	"github.com/somombo/impalab/internal/manifest"
)

const buildHelp = `impalab build [-flags]

Walks -root for component descriptors (impalab.toml), runs each
component's [build] step if present, and writes the resulting
manifest to -manifest-path.
`

func cmdBuild(ctx context.Context, log *logging.Logger, args []string) error {
	fset := flag.NewFlagSet("build", flag.ExitOnError)
	root := fset.String("root", env.Root, "root directory to search for components")
	manifestPath := fset.String("manifest-path", "impa_manifest.json", "path to write the manifest to")
	fset.Usage = usage(fset, buildHelp)
	fset.Parse(args)

	m, err := discovery.Discover(*root, log)
	if err != nil {
		return err
	}
	if err := manifest.Save(*manifestPath, m); err != nil {
		return err
	}
	log.Infof("wrote manifest with %d components to %s", len(m.Entries()), *manifestPath)
	return nil
}
