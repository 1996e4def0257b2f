// Package manifest implements the Manifest Store (spec.md §4.A): the
// name→run-command and language→run-command lookup table produced by
// `impalab build` and consumed read-only by `impalab run`.
package manifest

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/google/renameio"

	"github.com/somombo/impalab"
)

// componentDoc is the on-disk TOML shape of one manifest entry. The
// lowercase key names come from the explicit toml struct tags.
type componentDoc struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Language string `toml:"language,omitempty"`
	Run      runDoc `toml:"run"`
}

type runDoc struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args,omitempty"`
	Dir     string   `toml:"dir,omitempty"`
}

// manifestDoc is the root document: a single array-of-tables, matching
// spec.md §6's "structured document serializing a list of
// ManifestEntry records."
type manifestDoc struct {
	Component []componentDoc `toml:"component"`
}

// Manifest is the in-memory form, indexed both by name and by
// algorithm language (spec.md §3).
type Manifest struct {
	byName     map[string]impalab.ManifestEntry
	byLanguage map[string]impalab.ManifestEntry
}

// New builds an empty Manifest, for discovery to populate.
func New() *Manifest {
	return &Manifest{
		byName:     make(map[string]impalab.ManifestEntry),
		byLanguage: make(map[string]impalab.ManifestEntry),
	}
}

// Add inserts entry, enforcing the uniqueness invariants of spec.md §3:
// names are globally unique, and languages are unique among algorithm
// entries.
func (m *Manifest) Add(entry impalab.ManifestEntry) error {
	if entry.Name == "" {
		return &impalab.ManifestError{Err: fmt.Errorf("entry has empty name")}
	}
	if entry.Run.Empty() {
		return &impalab.ManifestError{Err: fmt.Errorf("entry %q has empty run command", entry.Name)}
	}
	if _, dup := m.byName[entry.Name]; dup {
		return &impalab.ManifestError{Err: fmt.Errorf("duplicate component name %q", entry.Name)}
	}
	if entry.Kind == impalab.Algorithm {
		if entry.Language == "" {
			return &impalab.ManifestError{Err: fmt.Errorf("algorithm %q has no language", entry.Name)}
		}
		if _, dup := m.byLanguage[entry.Language]; dup {
			return &impalab.ManifestError{Err: fmt.Errorf("duplicate algorithm language %q", entry.Language)}
		}
		m.byLanguage[entry.Language] = entry
	} else if entry.Language != "" {
		return &impalab.ManifestError{Err: fmt.Errorf("generator %q must not set language", entry.Name)}
	}
	m.byName[entry.Name] = entry
	return nil
}

// ByName looks up a component (generator or algorithm) by its name.
func (m *Manifest) ByName(name string) (impalab.ManifestEntry, bool) {
	e, ok := m.byName[name]
	return e, ok
}

// ByLanguage looks up an algorithm by its language.
func (m *Manifest) ByLanguage(language string) (impalab.ManifestEntry, bool) {
	e, ok := m.byLanguage[language]
	return e, ok
}

// Entries returns all entries, sorted by name for deterministic
// iteration (e.g. `impalab list`).
func (m *Manifest) Entries() []impalab.ManifestEntry {
	out := make([]impalab.ManifestEntry, 0, len(m.byName))
	for _, e := range m.byName {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load reads and parses the manifest file at path. It fails with a
// *impalab.ManifestError when the file is missing, unreadable,
// syntactically invalid, or violates a uniqueness invariant.
func Load(path string) (*Manifest, error) {
	var doc manifestDoc
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, &impalab.ManifestError{Path: path, Err: err}
	}

	m := New()
	for _, c := range doc.Component {
		kind, ok := impalab.ParseComponentKind(c.Type)
		if !ok {
			return nil, &impalab.ManifestError{Path: path, Err: fmt.Errorf("component %q: invalid type %q", c.Name, c.Type)}
		}
		entry := impalab.ManifestEntry{
			Name:     c.Name,
			Kind:     kind,
			Language: c.Language,
			Run: impalab.RunCommand{
				Command: c.Run.Command,
				Args:    c.Run.Args,
				Dir:     c.Run.Dir,
			},
		}
		if err := m.Add(entry); err != nil {
			return nil, &impalab.ManifestError{Path: path, Err: err}
		}
	}
	return m, nil
}

// Save serializes m to path. The serialized buffer is built completely
// in memory and written in a single renameio.WriteFile call, so a
// crash mid-save never leaves a partially-written manifest behind
// (spec.md §4.A).
func Save(path string, m *Manifest) error {
	var doc manifestDoc
	for _, e := range m.Entries() {
		doc.Component = append(doc.Component, componentDoc{
			Name:     e.Name,
			Type:     e.Kind.String(),
			Language: e.Language,
			Run: runDoc{
				Command: e.Run.Command,
				Args:    e.Run.Args,
				Dir:     e.Run.Dir,
			},
		})
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return &impalab.ManifestError{Path: path, Err: err}
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return &impalab.ManifestError{Path: path, Err: err}
	}
	return nil
}
