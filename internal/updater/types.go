package updater

import (
	"context"
	"time"

	"github.com/creativeprojects/go-selfupdate"
)

// State is where the updater is in the check/apply cycle.
type State string

// Update states.
const (
	StateIdle       State = "idle"
	StateChecking   State = "checking"
	StateAvailable  State = "available"
	StateApplying   State = "applying"
	StateUpdated    State = "updated"
	StateError      State = "error"
	StateRolledBack State = "rolled_back"
)

// DefaultRepository is the GitHub slug releases are fetched from.
const DefaultRepository = "smazurov/vcompress"

// ReleaseSource finds and installs releases. *selfupdate.Updater implements it.
type ReleaseSource interface {
	DetectLatest(ctx context.Context, repository selfupdate.Repository) (*selfupdate.Release, bool, error)
	UpdateTo(ctx context.Context, rel *selfupdate.Release, cmdPath string) error
}

// UpdateInfo describes the latest release relative to the running binary.
type UpdateInfo struct {
	CurrentVersion  string    `json:"current_version" example:"1.0.0" doc:"Running version"`
	LatestVersion   string    `json:"latest_version" example:"1.1.0" doc:"Latest published version"`
	ReleaseNotes    string    `json:"release_notes,omitempty" doc:"Markdown release notes"`
	ReleaseURL      string    `json:"release_url,omitempty" doc:"Release page"`
	PublishedAt     time.Time `json:"published_at,omitzero" doc:"When the release was published"`
	AssetSize       int       `json:"asset_size,omitempty" doc:"Download size in bytes"`
	UpdateAvailable bool      `json:"update_available" doc:"Whether the latest release is newer"`
}

// Status is the updater state plus backup details.
type Status struct {
	State           State      `json:"state" example:"idle" doc:"Updater state"`
	CurrentVersion  string     `json:"current_version" doc:"Running version"`
	TargetVersion   string     `json:"target_version,omitempty" doc:"Version found by the last check"`
	Error           string     `json:"error,omitempty" doc:"Last error"`
	LastChecked     *time.Time `json:"last_checked,omitempty" doc:"When the last check ran"`
	BackupAvailable bool       `json:"backup_available" doc:"Whether a rollback is possible"`
	BackupVersion   string     `json:"backup_version,omitempty" doc:"Version held in the backup"`
}

// Options configures the updater.
type Options struct {
	Repository string // GitHub slug, DefaultRepository when empty
	Prerelease bool
	// BackupDir holds the previous binary, ~/.cache/vcompress/backup when empty.
	BackupDir string
	// Executable is the binary to replace, the running one when empty.
	Executable string
	// Source overrides the GitHub release source.
	Source ReleaseSource
}
