// Package thumbnail samples preview frames from a file being transcoded.
//
// Sampling is rate limited to one extraction per MinInterval so the extra
// ffmpeg run does not compete with the encode. A failed extraction is never
// an error for the caller; it only shows up in logs and metrics.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for the frames ffmpeg emits
	_ "image/png"
	"time"

	"github.com/smazurov/vcompress/internal/ffmpeg"
	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/metrics"
	"github.com/smazurov/vcompress/internal/process"
)

const (
	// DefaultMinInterval is 1/0.03 Hz.
	DefaultMinInterval = 33300 * time.Millisecond
	// DefaultWidth is the preview width; height follows the aspect ratio.
	DefaultWidth = 240
)

var errEmptyFrame = errors.New("empty frame")

// Sampler extracts single frames with ffmpeg.
type Sampler struct {
	binary      string
	runner      process.Runner
	minInterval time.Duration
	width       int
	logger      logging.Logger
	now         func() time.Time
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithMinInterval overrides DefaultMinInterval.
func WithMinInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.minInterval = d
		}
	}
}

// WithWidth overrides DefaultWidth.
func WithWidth(w int) Option {
	return func(s *Sampler) {
		if w > 0 {
			s.width = w
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// New creates a sampler running binary through runner.
func New(binary string, runner process.Runner, logger logging.Logger, opts ...Option) *Sampler {
	s := &Sampler{
		binary:      binary,
		runner:      runner,
		minInterval: DefaultMinInterval,
		width:       DefaultWidth,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MinInterval returns the configured sampling floor.
func (s *Sampler) MinInterval() time.Duration {
	return s.minInterval
}

// MaybeSample extracts a frame at position when at least MinInterval has
// passed since *last. *last is updated after every attempt, failed or not.
// It returns the encoded image and true on success.
func (s *Sampler) MaybeSample(ctx context.Context, file string, position float64, last *time.Time) ([]byte, bool) {
	if s.now().Sub(*last) < s.minInterval {
		return nil, false
	}

	data, err := s.extract(ctx, file, position)
	*last = s.now()

	if err != nil {
		metrics.IncThumbnails(metrics.ThumbnailFailed)
		s.logger.Debug("Thumbnail extraction failed", "file", file, "position", position, "error", err)
		return nil, false
	}

	metrics.IncThumbnails(metrics.ThumbnailOK)
	return data, true
}

func (s *Sampler) extract(ctx context.Context, file string, position float64) ([]byte, error) {
	data, err := s.runner.Output(ctx, s.binary, ffmpeg.ThumbnailArgs(file, position, s.width)...)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errEmptyFrame
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return data, nil
}
