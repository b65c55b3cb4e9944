// Package settings holds per-file encode parameters.
//
// A [Bundle] describes one transcode: target resolution, codec, CRF or
// bitrate, preset, audio bitrate, mono downmix, and optional trim points.
// Bitrate mode and CRF mode are selected by the VideoBitrateKbps sentinel:
// zero means CRF.
//
// The [Store] maps an input path to exactly one bundle. Writes replace the
// whole bundle; there are no partial updates.
package settings
