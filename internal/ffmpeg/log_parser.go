package ffmpeg

import "strings"

// ParseLogLevel splits an ffmpeg diagnostic line printed with
// -loglevel level+info into its level and message. Lines look like
// "[info] msg" or "[libx265 @ 0x...] [warning] msg"; the component tag is
// kept in the message. Untagged lines are info.
func ParseLogLevel(line string) (level, msg string) {
	var component string
	rest := line
	for range 2 {
		tag, after, ok := bracketTag(rest)
		if !ok {
			break
		}
		if isLogLevel(tag) {
			return tag, component + after
		}
		if component != "" {
			break
		}
		component = rest[:len(rest)-len(after)]
		rest = after
	}
	return "info", line
}

// bracketTag splits "[tag] rest".
func bracketTag(s string) (tag, rest string, ok bool) {
	if len(s) < 3 || s[0] != '[' {
		return "", s, false
	}
	end := strings.Index(s, "] ")
	if end == -1 {
		return "", s, false
	}
	return s[1:end], s[end+2:], true
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
