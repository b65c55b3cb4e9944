package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/vcompress/internal/settings"
)

// ErrEmptyManifest is returned when a manifest lists no files.
var ErrEmptyManifest = errors.New("manifest lists no files")

// ManifestFile is one [[files]] entry.
type ManifestFile struct {
	Path string `toml:"path" json:"path"`
	// Recommend replaces the bundle with a probe-based recommendation at load time.
	Recommend bool `toml:"recommend,omitempty" json:"recommend,omitempty"`
	// Mono is the mono preference passed to the recommendation.
	Mono bool `toml:"mono,omitempty" json:"mono,omitempty"`
	// Settings overrides individual bundle fields on top of the defaults.
	Settings map[string]any `toml:"settings,omitempty" json:"settings,omitempty"`
}

// Manifest describes a batch: where to write, shared defaults and the
// ordered input files.
type Manifest struct {
	OutputDir string         `toml:"output_dir" json:"output_dir"`
	Defaults  map[string]any `toml:"defaults,omitempty" json:"defaults,omitempty"`
	Files     []ManifestFile `toml:"files" json:"files"`
}

// LoadManifest reads a batch manifest. Relative paths are resolved
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&m); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("failed to parse manifest %s: %s", path, strict.String())
		}
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if len(m.Files) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyManifest)
	}

	base := filepath.Dir(path)
	m.OutputDir = resolve(base, m.OutputDir)
	for i := range m.Files {
		if m.Files[i].Path == "" {
			return nil, fmt.Errorf("%s: files[%d] has no path", path, i)
		}
		m.Files[i].Path = resolve(base, m.Files[i].Path)
	}
	return &m, nil
}

// Save writes the manifest as TOML, creating the parent directory.
func (m *Manifest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Marshal encodes the manifest as TOML.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf).SetIndentTables(true)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// DefaultBundle applies the [defaults] table on top of base.
func (m *Manifest) DefaultBundle(base settings.Bundle) (settings.Bundle, error) {
	b, err := overlay(base, m.Defaults)
	if err != nil {
		return settings.Bundle{}, fmt.Errorf("defaults: %w", err)
	}
	return b, nil
}

// FileBundle applies the settings of files[i] on top of defaults and
// validates the result.
func (m *Manifest) FileBundle(i int, defaults settings.Bundle) (settings.Bundle, error) {
	f := m.Files[i]
	b, err := overlay(defaults, f.Settings)
	if err != nil {
		return settings.Bundle{}, fmt.Errorf("%s: %w", f.Path, err)
	}
	if err := b.Validate(); err != nil {
		return settings.Bundle{}, fmt.Errorf("%s: %w", f.Path, err)
	}
	return b, nil
}

// BundleSettings encodes b as a settings table suitable for a manifest entry.
func BundleSettings(b settings.Bundle) (map[string]any, error) {
	data, err := toml.Marshal(b)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := toml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// overlay decodes a partial table onto a copy of base. Keys absent from
// the table keep base's values; unknown keys are rejected.
func overlay(base settings.Bundle, table map[string]any) (settings.Bundle, error) {
	if len(table) == 0 {
		return base, nil
	}

	data, err := toml.Marshal(table)
	if err != nil {
		return settings.Bundle{}, err
	}

	b := base
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&b); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return settings.Bundle{}, fmt.Errorf("unknown setting: %s", strict.String())
		}
		return settings.Bundle{}, err
	}
	return b, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
