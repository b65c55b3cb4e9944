package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/vcompress/internal/events"
	"github.com/smazurov/vcompress/internal/probe"
	"github.com/smazurov/vcompress/internal/recommend"
	"github.com/smazurov/vcompress/internal/settings"
)

func writeExecutable(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// scriptedToolchain installs ffprobe reporting a 10s duration and an ffmpeg
// that prints two progress lines and fails for inputs named *broken*.
func scriptedToolchain(t *testing.T) Toolchain {
	t.Helper()
	dir := t.TempDir()

	tc := DefaultToolchain()
	tc.Thumbnails = false
	tc.Hardware = false
	tc.FFprobe = writeExecutable(t, dir, "ffprobe", "echo 10.0\n")
	tc.FFmpeg = writeExecutable(t, dir, "ffmpeg", `
printf 'frame=1 time=00:00:05.00 speed=2.0x\r' >&2
printf 'frame=2 time=00:00:10.00 speed=2.0x\r' >&2
case "$*" in *broken*) exit 1 ;; esac
exit 0
`)
	return tc
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunBatchCompletes(t *testing.T) {
	manifest := writeManifest(t, `
output_dir = "out"

[[files]]
path = "a.mov"

[[files]]
path = "b.mov"
[files.settings]
crf = 23
`)

	var out bytes.Buffer
	err := RunBatch(context.Background(), &out, RunOptions{Manifest: manifest, Toolchain: scriptedToolchain(t)})
	if err != nil {
		t.Fatalf("RunBatch: %v\n%s", err, out.String())
	}

	text := out.String()
	for _, want := range []string{"[1/2] a.mov", "[2/2] b.mov", "CRF: 23", "Batch completed: 2 of 2 files processed, 0 failed"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(manifest), "out")); err != nil {
		t.Errorf("output directory not created: %v", err)
	}
}

func TestRunBatchReportsFailedFiles(t *testing.T) {
	manifest := writeManifest(t, `
output_dir = "out"

[[files]]
path = "broken.mov"

[[files]]
path = "good.mov"
`)

	var out bytes.Buffer
	err := RunBatch(context.Background(), &out, RunOptions{Manifest: manifest, Toolchain: scriptedToolchain(t)})
	if err == nil || !strings.Contains(err.Error(), "1 of 2 files failed") {
		t.Fatalf("expected failed-files error, got %v", err)
	}
	if !strings.Contains(out.String(), "FAILED: ffmpeg exited with code 1") {
		t.Errorf("output should report the failure:\n%s", out.String())
	}
}

func TestRunBatchOutputOverride(t *testing.T) {
	manifest := writeManifest(t, "[[files]]\npath = \"a.mov\"\n")
	outDir := filepath.Join(t.TempDir(), "override")

	var out bytes.Buffer
	err := RunBatch(context.Background(), &out, RunOptions{Manifest: manifest, OutputDir: outDir, Toolchain: scriptedToolchain(t)})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if !strings.Contains(out.String(), filepath.Join(outDir, "a")) {
		t.Errorf("output path should use the override:\n%s", out.String())
	}
}

func TestRunBatchPreconditions(t *testing.T) {
	tc := scriptedToolchain(t)

	err := RunBatch(context.Background(), &bytes.Buffer{}, RunOptions{
		Manifest:  writeManifest(t, "[[files]]\npath = \"a.mov\"\n"),
		Toolchain: tc,
	})
	if err == nil || !strings.Contains(err.Error(), "no output directory") {
		t.Errorf("missing output dir: got %v", err)
	}

	missing := tc
	missing.FFmpeg = filepath.Join(t.TempDir(), "nope")
	err = RunBatch(context.Background(), &bytes.Buffer{}, RunOptions{
		Manifest:  writeManifest(t, "output_dir = \"out\"\n[[files]]\npath = \"a.mov\"\n"),
		Toolchain: missing,
	})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing ffmpeg: got %v", err)
	}

	err = RunBatch(context.Background(), &bytes.Buffer{}, RunOptions{
		Manifest:  writeManifest(t, "output_dir = \"out\"\n[[files]]\npath = \"a.mov\"\n[files.settings]\ncrf = 80\n"),
		Toolchain: tc,
	})
	if !errors.Is(err, settings.ErrInvalidSettings) {
		t.Errorf("invalid settings: got %v", err)
	}
}

func TestRunBatchContextCancel(t *testing.T) {
	manifest := writeManifest(t, "output_dir = \"out\"\n[[files]]\npath = \"a.mov\"\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunBatch(ctx, &bytes.Buffer{}, RunOptions{Manifest: manifest, Toolchain: scriptedToolchain(t)})
	if !errors.Is(err, ErrBatchCancelled) {
		t.Errorf("expected ErrBatchCancelled, got %v", err)
	}
}

type stubRecommender struct{}

func (stubRecommender) Recommend(_ context.Context, file string, base settings.Bundle, mono bool) (recommend.Recommendation, error) {
	if strings.Contains(file, "broken") {
		return recommend.Recommendation{}, fmt.Errorf("%w: %s", probe.ErrProbe, file)
	}
	base.VideoBitrateKbps = 1200
	base.Mono = mono
	return recommend.Recommendation{Bundle: base, Warnings: []string{"no audio stream found; assuming mono"}}, nil
}

func TestBuildRecommendedManifest(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.mov")
	broken := filepath.Join(dir, "broken.mov")

	var warn bytes.Buffer
	m, err := BuildRecommendedManifest(context.Background(), stubRecommender{}, settings.Defaults(false), []string{good, broken}, true, &warn)
	if err != nil {
		t.Fatalf("BuildRecommendedManifest: %v", err)
	}

	if len(m.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(m.Files))
	}
	if m.Files[1].Settings != nil {
		t.Errorf("unprobed file should have no settings, got %v", m.Files[1].Settings)
	}
	if !strings.Contains(warn.String(), "broken.mov") || !strings.Contains(warn.String(), "assuming mono") {
		t.Errorf("warnings = %q", warn.String())
	}

	b, err := m.FileBundle(0, settings.Defaults(false))
	if err != nil {
		t.Fatalf("FileBundle: %v", err)
	}
	if b.VideoBitrateKbps != 1200 || !b.Mono {
		t.Errorf("recommended bundle = %+v", b)
	}

	data, err := m.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "video_bitrate_kbps = 1200") {
		t.Errorf("manifest:\n%s", data)
	}
}

func TestConsolePresenter(t *testing.T) {
	var out bytes.Buffer
	c := newConsolePresenter(&out)

	c.Publish(events.OverallProgressEvent{Total: 2})
	c.Publish(events.FileStartedEvent{Index: 0, Name: "a.mov", Output: "/out/a_mobile.mp4", Settings: "Res: 640x360"})
	c.Publish(events.ETAEvent{Seconds: 3725})
	for _, p := range []float64{4, 12, 15, 19, 25} {
		c.Publish(events.FileProgressEvent{Percent: p, Speed: 2})
	}
	c.Publish(events.FileFinishedEvent{Name: "a.mov", Success: true})
	c.Publish(events.OverallProgressEvent{Completed: 1, Total: 2, Percent: 50})
	c.Publish(events.WarningEvent{Name: "b.mov", Message: "could not read duration"})
	c.Publish(events.FileFinishedEvent{Name: "b.mov", Message: "ffmpeg exited with code 1"})
	c.Publish(events.TerminalEvent{Status: events.StatusCompleted, Completed: 2, Total: 2, Failed: 1})

	text := out.String()
	for _, want := range []string{
		"[1/2] a.mov -> /out/a_mobile.mp4",
		" 12.0%  2.00x  ETA 1:02:05",
		" 25.0%",
		"done",
		"Overall: 1/2 files (50%)",
		"warning: b.mov: could not read duration",
		"FAILED: ffmpeg exited with code 1",
		"Batch completed: 2 of 2 files processed, 1 failed",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "15.0%") || strings.Contains(text, "4.0%") {
		t.Errorf("progress should be printed once per 10%% step:\n%s", text)
	}
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{59.6, "1:00"},
		{125, "2:05"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		if got := formatETA(tt.seconds); got != tt.want {
			t.Errorf("formatETA(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
