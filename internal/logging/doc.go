// Package logging configures slog for vcompress with one logger per module.
//
// Each module logger carries a "module" attribute and its own
// [slog.LevelVar], so levels can be raised for one component (say ffmpeg
// stderr) while the rest stays at info:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"ffmpeg": "debug"},
//	})
//	logger := logging.GetLogger("batch").With("run_id", runID)
//
// [SetLevels] applies a new Config to existing loggers in place; the
// config watcher calls it when the [logging] table of config.toml changes:
//
//	[logging]
//	level = "info"
//	format = "json"
//
//	[logging.modules]
//	probe = "debug"
//	api = "warn"
//
// Records go to stdout (text or JSON) when it is a terminal, pipe or file,
// to the systemd journal when its socket exists, and always to an
// in-memory [RingBuffer] that backs /api/logs. Journal fields are
// upper-cased attribute keys:
//
//	journalctl -t vcompress MODULE=batch -p warning
package logging
