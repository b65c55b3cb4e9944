// Package recommend suggests per-file encode settings that hit a fixed
// output size budget.
package recommend

import (
	"context"
	"fmt"
	"strconv"

	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/probe"
	"github.com/smazurov/vcompress/internal/settings"
)

const (
	// TargetSizeBytes is the output size the recommendation aims for.
	TargetSizeBytes = 350 * 1024 * 1024

	monoAudioKbps   = 96
	stereoAudioKbps = 128
	minVideoBitrate = 100_000 // bits/s
)

// Recommendation is a suggested bundle plus what it was derived from.
type Recommendation struct {
	Bundle   settings.Bundle `json:"settings"`
	Probe    probe.Result    `json:"probe"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Engine computes recommendations from probe results.
type Engine struct {
	prober   probe.Prober
	hardware bool
	logger   logging.Logger
}

// NewEngine creates an engine. hw selects the hardware HEVC encoder.
func NewEngine(prober probe.Prober, hw bool, logger logging.Logger) *Engine {
	return &Engine{prober: prober, hardware: hw, logger: logger}
}

// Recommend probes file and returns base with resolution, codec, preset,
// audio, mono and video bitrate replaced. CRF and trims are carried over
// from base. Probe failures are returned wrapped in probe.ErrProbe.
func (e *Engine) Recommend(ctx context.Context, file string, base settings.Bundle, monoPref bool) (Recommendation, error) {
	res, err := probe.Collect(ctx, e.prober, file)
	if err != nil {
		return Recommendation{}, err
	}

	rec := Recommendation{Probe: *res}
	if !res.HasAudio {
		rec.Warnings = append(rec.Warnings, "no audio stream found; assuming mono")
	}

	mono := monoPref || res.Channels == 1
	audioKbps := stereoAudioKbps
	if mono {
		audioKbps = monoAudioKbps
	}

	b := base
	b.Resolution = fmt.Sprintf("%dx%d", res.Width, res.Height)
	b.Codec = settings.HEVC(e.hardware)
	b.Preset = settings.PresetSlow
	b.AudioBitrate = strconv.Itoa(audioKbps) + "k"
	b.VideoBitrateKbps = ComputeVideoBitrateKbps(res.Duration, audioKbps)
	b.Mono = mono
	rec.Bundle = b

	if e.logger != nil {
		e.logger.Info("Recommendation computed",
			"file", file,
			"duration", res.Duration,
			"resolution", b.Resolution,
			"channels", res.Channels,
			"video_kbps", b.VideoBitrateKbps,
			"audio", b.AudioBitrate)
	}
	return rec, nil
}

// Apply recommends settings for file and stores them in place of the file's
// current bundle. On error the stored bundle is left untouched.
func (e *Engine) Apply(ctx context.Context, store *settings.Store, file string, monoPref bool) (Recommendation, error) {
	base, err := store.Get(file)
	if err != nil {
		return Recommendation{}, err
	}

	rec, err := e.Recommend(ctx, file, base, monoPref)
	if err != nil {
		return Recommendation{}, err
	}
	store.Put(file, rec.Bundle)
	return rec, nil
}

// TargetTotalBitrate is the bits/s that spends TargetSizeBytes over duration.
func TargetTotalBitrate(duration float64) float64 {
	return TargetSizeBytes * 8 / duration
}

// ComputeVideoBitrateKbps subtracts the audio share from the total budget,
// keeping at least 100 kbps of video.
func ComputeVideoBitrateKbps(duration float64, audioKbps int) int {
	video := TargetTotalBitrate(duration) - float64(audioKbps*1000)
	return int(max(video, minVideoBitrate) / 1000)
}
