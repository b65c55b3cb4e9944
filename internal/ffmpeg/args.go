package ffmpeg

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/smazurov/vcompress/internal/settings"
)

// Default binary names, resolved through PATH.
const (
	DefaultBinary      = "ffmpeg"
	DefaultProbeBinary = "ffprobe"
)

const (
	outputSuffix    = "_mobile"
	outputExtension = ".mp4"
	pixelFormat     = "yuv420p"
	audioCodec      = "aac"
	hwaccel         = "videotoolbox"
)

// DiagnosticArgs are prepended to transcode invocations so every stderr line
// carries a [level] prefix for ParseLogLevel and ffmpeg never reads stdin.
func DiagnosticArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-loglevel", "level+info"}
}

// BuildTranscodeArgs turns an input path and its bundle into ffmpeg arguments.
// Bundle values are passed through unchecked.
func BuildTranscodeArgs(input string, b settings.Bundle, output string) []string {
	args := []string{"-y"}

	// Seek before the input for fast coarse trimming.
	if b.TrimStart != "" {
		args = append(args, "-ss", b.TrimStart)
	}
	if b.Codec.IsHardware() {
		args = append(args, "-hwaccel", hwaccel)
	}

	args = append(args, "-i", input)

	// End time after the input applies to the decoded stream.
	if b.TrimEnd != "" {
		args = append(args, "-to", b.TrimEnd)
	}

	args = append(args,
		"-c:v", string(b.Codec),
		"-preset", string(b.Preset),
		"-vf", "scale="+b.Resolution,
		"-pix_fmt", pixelFormat,
	)

	if b.Mono {
		args = append(args, "-ac", "1")
	}

	if b.UsesBitrate() {
		args = append(args, "-b:v", strconv.Itoa(b.VideoBitrateKbps)+"k")
	} else {
		args = append(args, "-crf", strconv.Itoa(b.CRF))
	}

	return append(args, "-c:a", audioCodec, "-b:a", b.AudioBitrate, output)
}

// OutputPath returns where the transcode of input is written.
func OutputPath(outDir, input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, stem+outputSuffix+outputExtension)
}

// ThumbnailArgs extracts one JPEG frame at position, scaled to width, onto stdout.
func ThumbnailArgs(input string, position float64, width int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(position, 'f', -1, 64),
		"-i", input,
		"-frames:v", "1",
		"-vf", "scale=" + strconv.Itoa(width) + ":-1",
		"-c:v", "mjpeg",
		"-f", "image2pipe",
		"pipe:1",
	}
}
