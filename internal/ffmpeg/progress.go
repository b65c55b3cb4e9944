package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	timePattern  = regexp.MustCompile(`time=(\d+):(\d+):(\d+\.\d+)`)
	speedPattern = regexp.MustCompile(`speed=\s*(\d+(?:\.\d+)?)x`)
)

// ProgressEvent is one decoded progress line.
type ProgressEvent struct {
	// Position is the encoded media position in seconds.
	Position float64
	// Speed is the encode speed relative to realtime, 0 when not reported.
	Speed float64
}

// ParseProgress decodes the time= field of an ffmpeg stats line.
// Lines without one return false.
func ParseProgress(line string) (ProgressEvent, bool) {
	m := timePattern.FindStringSubmatch(line)
	if m == nil {
		return ProgressEvent{}, false
	}

	h, errH := strconv.ParseFloat(m[1], 64)
	mins, errM := strconv.ParseFloat(m[2], 64)
	s, errS := strconv.ParseFloat(m[3], 64)
	if errH != nil || errM != nil || errS != nil {
		return ProgressEvent{}, false
	}

	ev := ProgressEvent{Position: h*3600 + mins*60 + s}
	if sm := speedPattern.FindStringSubmatch(line); sm != nil {
		ev.Speed, _ = strconv.ParseFloat(sm[1], 64)
	}
	return ev, true
}

// ParseClock converts hh:mm:ss[.frac] to seconds.
func ParseClock(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, false
		}
		total = total*60 + v
	}
	return total, true
}

// FilePercent is position over duration in percent, 0 for a non-positive duration.
// Overshoot from a misreporting encoder is not clamped.
func FilePercent(position, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return position / duration * 100
}

// ComputeETA estimates seconds remaining from wall time spent so far.
// Below one second of media the ratio is unstable, so the remaining media
// time is used instead. The result is never negative.
func ComputeETA(elapsed, position, duration float64) float64 {
	var eta float64
	if position > 1 {
		eta = elapsed / position * (duration - position)
	} else {
		eta = duration - position
	}
	return max(eta, 0)
}
