package manifest

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/somombo/impalab"
)

// DescriptorFile is the name component discovery looks for in each
// directory of the tree it walks (spec.md §4.B, §6).
const DescriptorFile = "impalab.toml"

// Descriptor is the parsed form of one component directory's
// descriptor file.
type Descriptor struct {
	Name     string
	Kind     impalab.ComponentKind
	Language string
	Build    *impalab.RunCommand // nil if the component has no [build] table
	Run      impalab.RunCommand
}

// descriptorDoc mirrors componentDoc but additionally carries the
// optional [build] table that only a standalone component descriptor
// (never the aggregated manifest) has.
type descriptorDoc struct {
	Name     string  `toml:"name"`
	Type     string  `toml:"type"`
	Language string  `toml:"language,omitempty"`
	Build    *runDoc `toml:"build,omitempty"`
	Run      runDoc  `toml:"run"`
}

// ParseDescriptor decodes the TOML bytes of one component descriptor
// file (spec.md §6).
func ParseDescriptor(path string) (*Descriptor, error) {
	var doc descriptorDoc
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("%s: missing required field %q", path, "name")
	}
	kind, ok := impalab.ParseComponentKind(doc.Type)
	if !ok {
		return nil, fmt.Errorf("%s: invalid type %q", path, doc.Type)
	}
	if kind == impalab.Algorithm && doc.Language == "" {
		return nil, fmt.Errorf("%s: algorithm component missing required field %q", path, "language")
	}
	if kind == impalab.Generator && doc.Language != "" {
		return nil, fmt.Errorf("%s: generator component must not set %q", path, "language")
	}
	if doc.Run.Command == "" {
		return nil, fmt.Errorf("%s: missing required field %q", path, "run.command")
	}

	d := &Descriptor{
		Name:     doc.Name,
		Kind:     kind,
		Language: doc.Language,
		Run: impalab.RunCommand{
			Command: doc.Run.Command,
			Args:    doc.Run.Args,
		},
	}
	if doc.Build != nil {
		d.Build = &impalab.RunCommand{
			Command: doc.Build.Command,
			Args:    doc.Build.Args,
		}
	}
	return d, nil
}
