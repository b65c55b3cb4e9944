// Package ffmpeg builds ffmpeg invocations and decodes its diagnostic output.
//
// Argument lists never include the binary name; callers run them with the
// configured ffmpeg path. Transcode output goes to
// <output dir>/<input stem>_mobile.mp4.
//
// ffmpeg writes its progress line to stderr, refreshed in place with a
// carriage return:
//
//	frame=  240 fps= 48 q=28.0 size=     512kB time=00:00:08.00 bitrate= 524.3kbits/s speed=1.6x
//
// [ParseProgress] turns such a line into a [ProgressEvent]; anything else is
// ignored. [ParseLogLevel] classifies the remaining lines for logging.
package ffmpeg
