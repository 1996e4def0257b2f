// Package discovery implements Component Discovery (spec.md §4.B): a
// recursive filesystem walk that treats each directory containing a
// component descriptor as one component, runs its optional [build]
// step, and contributes a manifest entry.
//
// Grounded on internal/batch/batch.go's walk over the package tree
// (one build.textproto per directory) and on cmd/distri/build.go's
// per-package build invocation.
package discovery

import (
	"os"
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/somombo/impalab"
	"github.com/somombo/impalab/internal/launcher"
	"github.com/somombo/impalab/internal/logging"
	"github.com/somombo/impalab/internal/manifest"
)

// Discover walks root, treating every directory holding a
// manifest.DescriptorFile as one component, and returns the resulting
// Manifest. It aborts the whole walk with a *impalab.BuildError on the
// first component whose [build] step exits non-zero, and with a
// *impalab.ManifestError on any duplicate name or duplicate algorithm
// language (spec.md §4.B).
func Discover(root string, log *logging.Logger) (*manifest.Manifest, error) {
	m := manifest.New()

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Name() != manifest.DescriptorFile {
			return nil
		}

		componentDir, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return &impalab.ManifestError{Path: path, Err: err}
		}
		entry, err := buildComponent(componentDir, path, log)
		if err != nil {
			return err
		}
		if addErr := m.Add(entry); addErr != nil {
			return addErr
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*impalab.BuildError); ok {
			return nil, err
		}
		if _, ok := err.(*impalab.ManifestError); ok {
			return nil, err
		}
		return nil, &impalab.ManifestError{Path: root, Err: err}
	}
	return m, nil
}

// buildComponent parses one component's descriptor, runs its [build]
// step (if any) with both build and run resolving relative paths
// against the component's own directory, and returns the manifest
// entry discovery should contribute. componentDir must already be
// absolute (spec.md §6: the manifest persists the resolved absolute
// working directory, since `impalab run` may be invoked from a
// different cwd than `impalab build` was).
func buildComponent(componentDir, descriptorPath string, log *logging.Logger) (impalab.ManifestEntry, error) {
	d, err := manifest.ParseDescriptor(descriptorPath)
	if err != nil {
		return impalab.ManifestEntry{}, &impalab.ManifestError{Path: descriptorPath, Err: err}
	}

	if d.Build != nil {
		build := *d.Build
		build.Dir = componentDir
		log.Infof("building %s: %v", d.Name, build.Argv())

		h, err := launcher.Spawn(d.Name, build, launcher.StdioPolicy{
			Stdin:  launcher.Inherit,
			Stdout: launcher.Inherit,
			Stderr: launcher.Inherit,
		})
		if err != nil {
			return impalab.ManifestEntry{}, &impalab.BuildError{Component: d.Name, Err: err}
		}
		status, err := h.Wait()
		if err != nil {
			return impalab.ManifestEntry{}, &impalab.BuildError{Component: d.Name, Err: err}
		}
		if status.Code != 0 {
			return impalab.ManifestEntry{}, &impalab.BuildError{
				Component: d.Name,
				Err:       xerrors.Errorf("build step exited %d", status.Code),
			}
		}
	}

	run := d.Run
	run.Dir = componentDir

	return impalab.ManifestEntry{
		Name:     d.Name,
		Kind:     d.Kind,
		Language: d.Language,
		Run:      run,
	}, nil
}
