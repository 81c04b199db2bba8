// Package manifest handles quill.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked for in a project directory.
const FileName = "quill.toml"

// Manifest represents a quill.toml project configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	Format  FormatConfig `toml:"format"`
	Repl    ReplConfig   `toml:"repl"`

	// Dir is the directory containing the quill.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Entry   string `toml:"entry"`
}

// FormatConfig configures the source formatter.
type FormatConfig struct {
	Glyphs *bool `toml:"glyphs"` // nil means on
}

// GlyphsEnabled reports whether the formatter rewrites ascii names to
// glyphs; rewriting is on unless the manifest turns it off.
func (f FormatConfig) GlyphsEnabled() bool {
	return f.Glyphs == nil || *f.Glyphs
}

// ReplConfig configures the interactive session.
type ReplConfig struct {
	NoBanner bool   `toml:"no-banner"`
	History  string `toml:"history"`
}

// Load parses a quill.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Project.Entry == "" {
		m.Project.Entry = "main.ql"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a quill.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the project entry file.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.Dir, m.Project.Entry)
}

// HistoryPath returns the absolute path of the REPL history file, or
// an empty string when history is not configured.
func (m *Manifest) HistoryPath() string {
	if m.Repl.History == "" {
		return ""
	}
	if filepath.IsAbs(m.Repl.History) {
		return m.Repl.History
	}
	return filepath.Join(m.Dir, m.Repl.History)
}
