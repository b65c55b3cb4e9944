package logging

import (
	"log/slog"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

func TestRenderAttr(t *testing.T) {
	fields := map[string]string{}
	renderAttr(fields, "", slog.String("module", "batch"))
	renderAttr(fields, "", slog.Float64("speed", 1.5))
	renderAttr(fields, "RUN_", slog.Int("file.index", 2))
	renderAttr(fields, "", slog.Group("probe", slog.Duration("took", 250*time.Millisecond)))
	renderAttr(fields, "", slog.Attr{})

	want := map[string]string{
		"MODULE":         "batch",
		"SPEED":          "1.5",
		"RUN_FILE_INDEX": "2",
		"PROBE_TOOK":     "250ms",
	}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %q, want %q", k, fields[k], v)
		}
	}
}

func TestJournalHandlerWithAttrsAndGroup(t *testing.T) {
	var h slog.Handler = NewJournalHandler(slog.LevelInfo)
	h = h.WithAttrs([]slog.Attr{slog.String("module", "probe")})
	h = h.WithGroup("file")

	jh := h.(*JournalHandler)
	if jh.fields["MODULE"] != "probe" {
		t.Errorf("MODULE = %q, want probe", jh.fields["MODULE"])
	}
	if jh.prefix != "FILE_" {
		t.Errorf("prefix = %q, want FILE_", jh.prefix)
	}
	if NewJournalHandler(slog.LevelInfo).WithGroup("") == nil {
		t.Error("empty group returned nil handler")
	}
}

func TestJournalPriority(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  journal.Priority
	}{
		{slog.LevelDebug, journal.PriDebug},
		{slog.LevelInfo, journal.PriInfo},
		{slog.LevelWarn, journal.PriWarning},
		{slog.LevelError, journal.PriErr},
		{slog.LevelError + 4, journal.PriErr},
	}
	for _, tt := range tests {
		if got := journalPriority(tt.level); got != tt.want {
			t.Errorf("journalPriority(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
