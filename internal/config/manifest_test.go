package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/vcompress/internal/settings"
)

func TestLoadManifest(t *testing.T) {
	path := writeTOML(t, `
output_dir = "out"

[defaults]
preset = "medium"
audio_bitrate = "128k"

[[files]]
path = "a.mov"

[[files]]
path = "/abs/b.mkv"
recommend = true
mono = true

[files.settings]
crf = 23
trim_start = "00:00:05"
`)
	dir := filepath.Dir(path)

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	if m.OutputDir != filepath.Join(dir, "out") {
		t.Errorf("OutputDir = %q, want it resolved against the manifest", m.OutputDir)
	}
	if len(m.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(m.Files))
	}
	if m.Files[0].Path != filepath.Join(dir, "a.mov") || m.Files[1].Path != "/abs/b.mkv" {
		t.Errorf("paths = %q, %q", m.Files[0].Path, m.Files[1].Path)
	}
	if !m.Files[1].Recommend || !m.Files[1].Mono {
		t.Errorf("recommend flags not decoded: %+v", m.Files[1])
	}

	defaults, err := m.DefaultBundle(settings.Defaults(false))
	if err != nil {
		t.Fatalf("DefaultBundle: %v", err)
	}
	if defaults.Preset != settings.PresetMedium || defaults.AudioBitrate != "128k" {
		t.Errorf("defaults not applied: %+v", defaults)
	}
	if defaults.Resolution != "640x360" || defaults.CRF != 28 {
		t.Errorf("unset defaults should keep base values: %+v", defaults)
	}

	first, err := m.FileBundle(0, defaults)
	if err != nil {
		t.Fatalf("FileBundle(0): %v", err)
	}
	if first != defaults {
		t.Errorf("file without settings should get the defaults, got %+v", first)
	}

	second, err := m.FileBundle(1, defaults)
	if err != nil {
		t.Fatalf("FileBundle(1): %v", err)
	}
	if second.CRF != 23 || second.TrimStart != "00:00:05" || second.Preset != settings.PresetMedium {
		t.Errorf("file settings not overlaid: %+v", second)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		is      error
	}{
		{"no files", `output_dir = "out"`, "", ErrEmptyManifest},
		{"unknown key", "output = \"out\"\n[[files]]\npath = \"a.mov\"\n", "output", nil},
		{"missing path", "[[files]]\nrecommend = true\n", "has no path", nil},
		{"bad toml", "[[files]\n", "failed to parse", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadManifest(writeTOML(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("expected %v, got %v", tt.is, err)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}

	if _, err := LoadManifest(filepath.Join(t.TempDir(), "absent.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing manifest: got %v", err)
	}
}

func TestFileBundleRejectsBadSettings(t *testing.T) {
	path := writeTOML(t, `
[[files]]
path = "a.mov"
[files.settings]
crf = 99

[[files]]
path = "b.mov"
[files.settings]
bitrate = 500
`)

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	_, err = m.FileBundle(0, settings.Defaults(false))
	if !errors.Is(err, settings.ErrInvalidSettings) || !strings.Contains(err.Error(), "a.mov") {
		t.Errorf("out-of-range crf: got %v", err)
	}

	_, err = m.FileBundle(1, settings.Defaults(false))
	if err == nil || !strings.Contains(err.Error(), "unknown setting") {
		t.Errorf("unknown key: got %v", err)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	b := settings.Defaults(false)
	b.VideoBitrateKbps = 1500
	b.Mono = true

	table, err := BundleSettings(b)
	if err != nil {
		t.Fatalf("BundleSettings: %v", err)
	}

	dir := t.TempDir()
	m := &Manifest{
		OutputDir: filepath.Join(dir, "out"),
		Files:     []ManifestFile{{Path: filepath.Join(dir, "a.mov"), Settings: table}},
	}
	path := filepath.Join(dir, "nested", "batch.toml")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	got, err := loaded.FileBundle(0, settings.Defaults(true))
	if err != nil {
		t.Fatalf("FileBundle: %v", err)
	}
	if got != b {
		t.Errorf("round trip = %+v, want %+v", got, b)
	}
}
