package settings

import (
	"fmt"
	"regexp"
	"runtime"
	"slices"
	"strconv"
	"strings"
)

// Codec names a video encoder understood by ffmpeg.
type Codec string

// Supported codecs.
const (
	CodecX265             Codec = "libx265"
	CodecX264             Codec = "libx264"
	CodecHEVCVideoToolbox Codec = "hevc_videotoolbox"
	CodecH264VideoToolbox Codec = "h264_videotoolbox"
)

// hardwareMarker appears in the name of every hardware-accelerated encoder.
const hardwareMarker = "videotoolbox"

// IsHardware reports whether the codec needs the hardware decode hint.
func (c Codec) IsHardware() bool {
	return strings.Contains(string(c), hardwareMarker)
}

// Preset is the encoder speed/quality tradeoff.
type Preset string

// Supported presets, fastest first.
const (
	PresetUltrafast Preset = "ultrafast"
	PresetFast      Preset = "fast"
	PresetMedium    Preset = "medium"
	PresetSlow      Preset = "slow"
	PresetSlower    Preset = "slower"
	PresetVeryslow  Preset = "veryslow"
)

// Presets lists every selectable preset.
func Presets() []Preset {
	return []Preset{PresetUltrafast, PresetFast, PresetMedium, PresetSlow, PresetSlower, PresetVeryslow}
}

// Codecs lists the selectable codecs. Hardware codecs are offered only when hw is true.
func Codecs(hw bool) []Codec {
	codecs := []Codec{CodecX265, CodecX264}
	if hw {
		codecs = append(codecs, CodecHEVCVideoToolbox, CodecH264VideoToolbox)
	}
	return codecs
}

// HardwareAvailable reports whether VideoToolbox encoders can be used.
func HardwareAvailable() bool {
	return runtime.GOOS == "darwin" && runtime.GOARCH == "arm64"
}

// HEVC returns the preferred H.265 encoder for the platform.
func HEVC(hw bool) Codec {
	if hw {
		return CodecHEVCVideoToolbox
	}
	return CodecX265
}

// Bundle is the full set of encode parameters for one input file.
type Bundle struct {
	Resolution       string `json:"resolution" toml:"resolution" example:"640x360" doc:"Target WxH"`
	Codec            Codec  `json:"codec" toml:"codec" example:"libx265" doc:"Video encoder"`
	CRF              int    `json:"crf" toml:"crf" example:"28" doc:"Constant rate factor, used when video_bitrate_kbps is 0"`
	Preset           Preset `json:"preset" toml:"preset" example:"slow" doc:"Encoder preset"`
	AudioBitrate     string `json:"audio_bitrate" toml:"audio_bitrate" example:"96k" doc:"AAC bitrate"`
	VideoBitrateKbps int    `json:"video_bitrate_kbps" toml:"video_bitrate_kbps" example:"0" doc:"Video bitrate in kbps, 0 selects CRF mode"`
	Mono             bool   `json:"mono" toml:"mono" doc:"Downmix audio to one channel"`
	TrimStart        string `json:"trim_start,omitempty" toml:"trim_start" example:"00:00:05" doc:"Seek position before input (hh:mm:ss)"`
	TrimEnd          string `json:"trim_end,omitempty" toml:"trim_end" example:"00:01:00" doc:"Stop position (hh:mm:ss)"`
}

// Defaults returns the bundle applied to newly added files.
func Defaults(hw bool) Bundle {
	return Bundle{
		Resolution:   "640x360",
		Codec:        HEVC(hw),
		CRF:          28,
		Preset:       PresetSlow,
		AudioBitrate: "96k",
	}
}

// UsesBitrate reports whether the bundle selects bitrate mode over CRF.
func (b Bundle) UsesBitrate() bool {
	return b.VideoBitrateKbps > 0
}

// Summary renders the one-line description shown next to file progress.
func (b Bundle) Summary() string {
	quality := fmt.Sprintf("CRF: %d", b.CRF)
	if b.UsesBitrate() {
		quality = fmt.Sprintf("Bitrate: %dk", b.VideoBitrateKbps)
	}
	audio := b.AudioBitrate
	if b.Mono {
		audio += " mono"
	}
	return fmt.Sprintf("Res: %s | Codec: %s | %s | Audio: %s", b.Resolution, b.Codec, quality, audio)
}

var (
	resolutionPattern = regexp.MustCompile(`^\d+x\d+$`)
	trimPattern       = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}(\.\d+)?$`)
	bitratePattern    = regexp.MustCompile(`^\d+[kKmM]?$`)
)

// Validate checks field domains for presentation layers that accept user input.
// The command builder does not call it; ffmpeg rejects what slips through.
func (b Bundle) Validate() error {
	var problems []string

	if !resolutionPattern.MatchString(b.Resolution) {
		problems = append(problems, fmt.Sprintf("resolution %q must be WxH", b.Resolution))
	}
	if !slices.Contains(Codecs(true), b.Codec) {
		problems = append(problems, fmt.Sprintf("unknown codec %q", b.Codec))
	}
	if b.CRF < 0 || b.CRF > 51 {
		problems = append(problems, "crf must be between 0 and 51, got "+strconv.Itoa(b.CRF))
	}
	if !slices.Contains(Presets(), b.Preset) {
		problems = append(problems, fmt.Sprintf("unknown preset %q", b.Preset))
	}
	if !bitratePattern.MatchString(b.AudioBitrate) {
		problems = append(problems, fmt.Sprintf("audio bitrate %q must look like 96k", b.AudioBitrate))
	}
	if b.VideoBitrateKbps < 0 {
		problems = append(problems, "video bitrate must not be negative")
	}
	if b.TrimStart != "" && !trimPattern.MatchString(b.TrimStart) {
		problems = append(problems, fmt.Sprintf("trim start %q must be hh:mm:ss", b.TrimStart))
	}
	if b.TrimEnd != "" && !trimPattern.MatchString(b.TrimEnd) {
		problems = append(problems, fmt.Sprintf("trim end %q must be hh:mm:ss", b.TrimEnd))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}
