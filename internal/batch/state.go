package batch

import "github.com/smazurov/vcompress/internal/events"

// State is the orchestrator lifecycle state.
type State string

// Orchestrator states. Paused is a sub-state of running.
const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Status is the terminal status of a run.
type Status string

// Terminal statuses.
const (
	StatusCompleted Status = events.StatusCompleted
	StatusCancelled Status = events.StatusCancelled
	StatusFailed    Status = events.StatusFailed
)

// Snapshot is a point-in-time view of the orchestrator.
type Snapshot struct {
	State        State   `json:"state" enum:"idle,running,paused" doc:"Lifecycle state"`
	RunID        string  `json:"run_id,omitempty" doc:"Identifier of the current or last run"`
	OutputDir    string  `json:"output_dir" doc:"Directory transcodes are written to"`
	Total        int     `json:"total" doc:"Files in the current or last run"`
	Completed    int     `json:"completed" doc:"Files finished in the current or last run"`
	Failed       int     `json:"failed" doc:"Files whose encoder exited non-zero"`
	CurrentIndex int     `json:"current_index" doc:"Index of the file being encoded, -1 when none"`
	CurrentFile  string  `json:"current_file,omitempty" doc:"Name of the file being encoded"`
	Settings     string  `json:"settings,omitempty" doc:"Settings summary of the file being encoded"`
	FilePercent  float64 `json:"file_percent" doc:"Progress of the file being encoded"`
	ETASeconds   float64 `json:"eta_seconds" doc:"Estimated seconds remaining for the file being encoded"`
	LastStatus   Status  `json:"last_status,omitempty" doc:"Terminal status of the last finished run"`
	LastError    string  `json:"last_error,omitempty" doc:"Error of the last failed run"`
}
