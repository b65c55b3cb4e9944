package batch

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/smazurov/vcompress/internal/ffmpeg"
	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/process"
)

// Transcode is one running encoder process.
type Transcode interface {
	// Lines yields diagnostic output lines until EOF or until the consumer stops.
	Lines() iter.Seq[string]
	// Wait blocks until exit and returns the exit code.
	Wait() int
	// Terminate stops the encoder early and returns the exit code.
	Terminate() int
}

// Launcher starts an encoder for a prepared argument list.
type Launcher interface {
	Launch(id string, args []string) (Transcode, error)
}

// DurationProber reports a file's duration in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// ThumbnailSampler extracts a preview frame at a throttled rate.
type ThumbnailSampler interface {
	MaybeSample(ctx context.Context, file string, position float64, last *time.Time) ([]byte, bool)
}

// ExecLauncher runs ffmpeg as a supervised subprocess.
type ExecLauncher struct {
	Binary          string
	GracefulTimeout time.Duration
	Logger          logging.Logger // process lifecycle
	OutputLogger    logging.Logger // ffmpeg diagnostics
}

// Launch implements Launcher.
func (l ExecLauncher) Launch(id string, args []string) (Transcode, error) {
	binary := l.Binary
	if binary == "" {
		binary = ffmpeg.DefaultBinary
	}

	p := process.New(id, binary, slices.Concat(ffmpeg.DiagnosticArgs(), args), l.Logger)
	p.SetLogParser(l.OutputLogger, ffmpeg.ParseLogLevel)
	p.SetGracefulTimeout(l.GracefulTimeout)
	if err := p.Start(); err != nil {
		return nil, err
	}
	return p, nil
}
