// Package cmd holds the cobra subcommands and the wiring they share with
// the API server.
package cmd

import (
	"fmt"
	"os/exec"
	"time"

	"github.com/smazurov/vcompress/internal/batch"
	"github.com/smazurov/vcompress/internal/events"
	"github.com/smazurov/vcompress/internal/ffmpeg"
	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/probe"
	"github.com/smazurov/vcompress/internal/process"
	"github.com/smazurov/vcompress/internal/recommend"
	"github.com/smazurov/vcompress/internal/settings"
	"github.com/smazurov/vcompress/internal/thumbnail"
)

// Toolchain locates ffmpeg and ffprobe and carries the encode tunables.
type Toolchain struct {
	FFmpeg  string
	FFprobe string

	Thumbnails        bool
	ThumbnailInterval time.Duration
	ThumbnailWidth    int

	PollInterval time.Duration
	KillGrace    time.Duration

	// Hardware enables the VideoToolbox encoders.
	Hardware bool
}

// DefaultToolchain uses the binaries on PATH and the default tunables.
func DefaultToolchain() Toolchain {
	return Toolchain{
		FFmpeg:            ffmpeg.DefaultBinary,
		FFprobe:           ffmpeg.DefaultProbeBinary,
		Thumbnails:        true,
		ThumbnailInterval: thumbnail.DefaultMinInterval,
		ThumbnailWidth:    thumbnail.DefaultWidth,
		PollInterval:      100 * time.Millisecond,
		KillGrace:         5 * time.Second,
		Hardware:          settings.HardwareAvailable(),
	}
}

// Check reports the first of ffmpeg and ffprobe that cannot be found.
func (t Toolchain) Check() error {
	return lookPath(t.FFmpeg, t.FFprobe)
}

// CheckProbe is Check for commands that only probe.
func (t Toolchain) CheckProbe() error {
	return lookPath(t.FFprobe)
}

func lookPath(binaries ...string) error {
	for _, bin := range binaries {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

// Prober returns an ffprobe-backed prober.
func (t Toolchain) Prober() *probe.FFprobe {
	return probe.NewFFprobe(t.FFprobe, process.Exec{Logger: logging.GetLogger("process")}, logging.GetLogger("probe"))
}

// Recommender returns a recommendation engine using Prober.
func (t Toolchain) Recommender() *recommend.Engine {
	return recommend.NewEngine(t.Prober(), t.Hardware, logging.GetLogger("recommend"))
}

// NewOrchestrator wires an orchestrator to the real encoder. Events go to
// publisher; defaults is the bundle given to added files.
func (t Toolchain) NewOrchestrator(publisher events.Publisher, outputDir string, defaults settings.Bundle) *batch.Orchestrator {
	var sampler batch.ThumbnailSampler
	if t.Thumbnails {
		sampler = thumbnail.New(t.FFmpeg, process.Exec{Logger: logging.GetLogger("process")}, logging.GetLogger("thumbnail"),
			thumbnail.WithMinInterval(t.ThumbnailInterval),
			thumbnail.WithWidth(t.ThumbnailWidth),
		)
	}

	return batch.New(batch.Options{
		Prober: t.Prober(),
		Launcher: batch.ExecLauncher{
			Binary:          t.FFmpeg,
			GracefulTimeout: t.KillGrace,
			Logger:          logging.GetLogger("process"),
			OutputLogger:    logging.GetLogger("ffmpeg"),
		},
		Sampler:      sampler,
		Publisher:    publisher,
		Logger:       logging.GetLogger("batch"),
		OutputDir:    outputDir,
		Defaults:     defaults,
		PollInterval: t.PollInterval,
	})
}
