// Package probe reads media metadata with ffprobe.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/process"
)

// ErrProbe is returned when ffprobe cannot report a required field.
var ErrProbe = errors.New("probe failed")

// Result is the metadata needed for recommendations.
type Result struct {
	Duration float64 `json:"duration" example:"100" doc:"Duration in seconds"`
	Width    int     `json:"width" example:"1920" doc:"Width of the first video stream"`
	Height   int     `json:"height" example:"1080" doc:"Height of the first video stream"`
	// Channels is 1 when the file has no audio stream; see HasAudio.
	Channels int  `json:"channels" example:"2" doc:"Audio channels of the first audio stream"`
	HasAudio bool `json:"has_audio" doc:"Whether an audio stream was found"`
}

// Prober inspects media files.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
	Dimensions(ctx context.Context, path string) (width, height int, err error)
	AudioChannels(ctx context.Context, path string) (channels int, present bool, err error)
	Probe(ctx context.Context, path string) (*Result, error)
}

// FFprobe implements Prober with plain-text ffprobe queries.
type FFprobe struct {
	Binary string
	Runner process.Runner
	Logger logging.Logger
}

// NewFFprobe creates a prober running binary through runner.
func NewFFprobe(binary string, runner process.Runner, logger logging.Logger) *FFprobe {
	return &FFprobe{Binary: binary, Runner: runner, Logger: logger}
}

// Duration returns the container duration in seconds.
func (f *FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	out, err := f.query(ctx, path,
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1")
	if err != nil {
		return 0, err
	}

	d, err := strconv.ParseFloat(firstLine(out), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: duration %q: %w", ErrProbe, path, firstLine(out), err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s: non-positive duration %v", ErrProbe, path, d)
	}
	return d, nil
}

// Dimensions returns the size of the first video stream.
func (f *FFprobe) Dimensions(ctx context.Context, path string) (int, int, error) {
	out, err := f.query(ctx, path,
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0")
	if err != nil {
		return 0, 0, err
	}

	line := firstLine(out)
	ws, hs, ok := strings.Cut(line, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s: dimensions %q", ErrProbe, path, line)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(ws))
	h, errH := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(hs, ",")))
	if errW != nil || errH != nil {
		return 0, 0, fmt.Errorf("%w: %s: dimensions %q", ErrProbe, path, line)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: %s: invalid dimensions %dx%d", ErrProbe, path, w, h)
	}
	return w, h, nil
}

// AudioChannels returns the channel count of the first audio stream.
// A file without audio reports present=false and no error.
func (f *FFprobe) AudioChannels(ctx context.Context, path string) (int, bool, error) {
	out, err := f.query(ctx, path,
		"-select_streams", "a:0",
		"-show_entries", "stream=channels",
		"-of", "default=noprint_wrappers=1:nokey=1")
	if err != nil {
		return 0, false, err
	}

	line := firstLine(out)
	if line == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("%w: %s: channels %q", ErrProbe, path, line)
	}
	return n, true, nil
}

// Probe runs all three queries. A missing audio stream counts as one channel.
func (f *FFprobe) Probe(ctx context.Context, path string) (*Result, error) {
	return Collect(ctx, f, path)
}

// Collect composes a Result from the individual queries of p.
func Collect(ctx context.Context, p Prober, path string) (*Result, error) {
	d, err := p.Duration(ctx, path)
	if err != nil {
		return nil, err
	}
	w, h, err := p.Dimensions(ctx, path)
	if err != nil {
		return nil, err
	}
	ch, present, err := p.AudioChannels(ctx, path)
	if err != nil {
		return nil, err
	}
	if !present {
		ch = 1
	}
	return &Result{Duration: d, Width: w, Height: h, Channels: ch, HasAudio: present}, nil
}

func (f *FFprobe) query(ctx context.Context, path string, args ...string) ([]byte, error) {
	full := append([]string{"-v", "error"}, args...)
	full = append(full, path)

	out, err := f.Runner.Output(ctx, f.Binary, full...)
	if err != nil {
		if f.Logger != nil {
			f.Logger.Warn("ffprobe failed", "path", path, "error", err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrProbe, path, err)
	}
	return out, nil
}

func firstLine(out []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line)
}
