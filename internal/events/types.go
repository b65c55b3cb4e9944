package events

// Event type constants for kelindar/event.
const (
	TypeOverallProgress uint32 = iota + 1
	TypeFileStarted
	TypeFileProgress
	TypeETA
	TypeThumbnail
	TypeFileFinished
	TypeWarning
	TypeTerminal
	TypeLogEntry
	TypeRun
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Terminal statuses reported at the end of a run.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// OverallProgressEvent reports how many files of the batch have finished.
type OverallProgressEvent struct {
	RunID     string  `json:"run_id" doc:"Run identifier"`
	Completed int     `json:"completed" example:"2" doc:"Files finished so far"`
	Total     int     `json:"total" example:"5" doc:"Files in the batch"`
	Percent   float64 `json:"percent" example:"40" doc:"Completed divided by total, in percent"`
}

// Type returns the event type identifier for OverallProgressEvent.
func (e OverallProgressEvent) Type() uint32 { return TypeOverallProgress }

// FileStartedEvent is published right before the encoder is launched for a file.
type FileStartedEvent struct {
	RunID     string  `json:"run_id" doc:"Run identifier"`
	Index     int     `json:"index" example:"0" doc:"Zero-based position in the batch"`
	Name      string  `json:"name" example:"clip.mov" doc:"Input file base name"`
	Input     string  `json:"input" doc:"Input file path"`
	Output    string  `json:"output" doc:"Output file path"`
	Duration  float64 `json:"duration" example:"180" doc:"Probed duration in seconds"`
	Settings  string  `json:"settings" doc:"Settings summary"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FileStartedEvent.
func (e FileStartedEvent) Type() uint32 { return TypeFileStarted }

// FileProgressEvent carries the percent of the current file.
type FileProgressEvent struct {
	RunID    string  `json:"run_id" doc:"Run identifier"`
	Index    int     `json:"index" example:"0" doc:"Zero-based position in the batch"`
	Name     string  `json:"name" example:"clip.mov" doc:"Input file base name"`
	Percent  float64 `json:"percent" example:"25" doc:"Position divided by duration, in percent"`
	Position float64 `json:"position" example:"45" doc:"Encoded media position in seconds"`
	Duration float64 `json:"duration" example:"180" doc:"File duration in seconds"`
	Speed    float64 `json:"speed,omitempty" example:"2.5" doc:"Encoder speed relative to realtime"`
	Settings string  `json:"settings" example:"Res: 640x360 | Codec: libx265 | CRF: 28 | Audio: 96k" doc:"Settings summary"`
}

// Type returns the event type identifier for FileProgressEvent.
func (e FileProgressEvent) Type() uint32 { return TypeFileProgress }

// ETAEvent carries the estimated seconds remaining for the current file.
type ETAEvent struct {
	RunID   string  `json:"run_id" doc:"Run identifier"`
	Name    string  `json:"name" example:"clip.mov" doc:"Input file base name"`
	Seconds float64 `json:"seconds" example:"90" doc:"Estimated seconds remaining"`
}

// Type returns the event type identifier for ETAEvent.
func (e ETAEvent) Type() uint32 { return TypeETA }

// ThumbnailEvent carries a preview frame sampled from the current file.
type ThumbnailEvent struct {
	RunID     string  `json:"run_id" doc:"Run identifier"`
	Name      string  `json:"name" example:"clip.mov" doc:"Input file base name"`
	Position  float64 `json:"position" example:"45" doc:"Media position the frame was taken at"`
	ImageData []byte  `json:"image_data" doc:"Base64-encoded JPEG frame"`
}

// Type returns the event type identifier for ThumbnailEvent.
func (e ThumbnailEvent) Type() uint32 { return TypeThumbnail }

// FileFinishedEvent is published when the encoder for a file exits.
// A non-zero exit code marks the file as failed; the batch continues.
type FileFinishedEvent struct {
	RunID     string `json:"run_id" doc:"Run identifier"`
	Index     int    `json:"index" example:"0" doc:"Zero-based position in the batch"`
	Name      string `json:"name" example:"clip.mov" doc:"Input file base name"`
	Output    string `json:"output" doc:"Output file path"`
	Success   bool   `json:"success" doc:"Whether the encoder exited cleanly"`
	ExitCode  int    `json:"exit_code" doc:"Encoder exit code"`
	Cancelled bool   `json:"cancelled,omitempty" doc:"Whether the file was interrupted by cancel"`
	Message   string `json:"message,omitempty" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FileFinishedEvent.
func (e FileFinishedEvent) Type() uint32 { return TypeFileFinished }

// WarningEvent reports a recoverable problem tied to one file.
type WarningEvent struct {
	RunID   string `json:"run_id,omitempty" doc:"Run identifier"`
	Name    string `json:"name" example:"clip.mov" doc:"Input file base name"`
	Message string `json:"message" example:"duration probe failed, progress is approximate" doc:"Warning text"`
}

// Type returns the event type identifier for WarningEvent.
func (e WarningEvent) Type() uint32 { return TypeWarning }

// TerminalEvent is the last event of a run.
type TerminalEvent struct {
	RunID     string `json:"run_id" doc:"Run identifier"`
	Status    string `json:"status" example:"completed" enum:"completed,cancelled,failed" doc:"Final run status"`
	Completed int    `json:"completed" doc:"Files finished before the run ended"`
	Failed    int    `json:"failed" doc:"Files whose encoder exited non-zero"`
	Total     int    `json:"total" doc:"Files in the batch"`
	Message   string `json:"message,omitempty" doc:"Reason for a failed run"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TerminalEvent.
func (e TerminalEvent) Type() uint32 { return TypeTerminal }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"batch" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// RunEvent wraps any run event so one subscriber sees every type in
// publish order. The bus publishes it next to each typed run event.
type RunEvent struct {
	Event Event
}

// Type returns the event type identifier for RunEvent.
func (e RunEvent) Type() uint32 { return TypeRun }

// Droppable reports whether a slow consumer may skip the event. Progress,
// ETA and thumbnails are superseded by the next one; lifecycle events are not.
func Droppable(ev Event) bool {
	switch ev.(type) {
	case OverallProgressEvent, FileProgressEvent, ETAEvent, ThumbnailEvent:
		return true
	default:
		return false
	}
}
