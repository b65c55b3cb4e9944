package updater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/version"
)

// Service checks for and applies releases. Safe for concurrent use; only
// one check or apply runs at a time.
type Service struct {
	repository selfupdate.Repository
	slug       string
	source     ReleaseSource
	executable string
	backup     *backupManager

	mu            sync.RWMutex
	state         State
	latestRelease *selfupdate.Release
	lastChecked   *time.Time
	lastError     error

	enabled        bool
	disabledReason string

	logger logging.Logger
}

// NewService creates an updater. When the binary's directory is not
// writable the service is returned disabled rather than failing.
func NewService(opts Options) (*Service, error) {
	logger := logging.GetLogger("update")

	exe := opts.Executable
	if exe == "" {
		var err error
		if exe, err = selfupdate.ExecutablePath(); err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
	}

	if ok, reason := checkWritePermission(exe); !ok {
		logger.Warn("Update service disabled", "reason", reason)
		return &Service{state: StateIdle, executable: exe, disabledReason: reason, logger: logger}, nil
	}

	source := opts.Source
	if source == nil {
		gh, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub source: %w", err)
		}
		up, err := selfupdate.NewUpdater(selfupdate.Config{Source: gh, Prerelease: opts.Prerelease})
		if err != nil {
			return nil, fmt.Errorf("failed to create updater: %w", err)
		}
		source = up
	}

	repo := opts.Repository
	if repo == "" {
		repo = DefaultRepository
	}

	backupDir := opts.BackupDir
	if backupDir == "" {
		dir, err := defaultBackupDir()
		if err != nil {
			logger.Warn("Rollback unavailable", "error", err)
		}
		backupDir = dir
	}
	var backup *backupManager
	if backupDir != "" {
		var err error
		if backup, err = newBackupManager(backupDir, logger); err != nil {
			logger.Warn("Rollback unavailable", "error", err)
		}
	}

	return &Service{
		repository: selfupdate.ParseSlug(repo),
		slug:       repo,
		source:     source,
		executable: exe,
		backup:     backup,
		state:      StateIdle,
		enabled:    true,
		logger:     logger,
	}, nil
}

func checkWritePermission(exe string) (bool, string) {
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	dir := filepath.Dir(exe)
	f, err := os.CreateTemp(dir, ".vcompress.update.test*")
	if err != nil {
		return false, fmt.Sprintf("no write permission to %s: %v", dir, err)
	}
	f.Close()
	os.Remove(f.Name())
	return true, ""
}

// IsEnabled reports whether the binary can be replaced.
func (s *Service) IsEnabled() bool {
	return s.enabled
}

// DisabledReason says why the service is disabled, empty if enabled.
func (s *Service) DisabledReason() string {
	return s.disabledReason
}

// CheckForUpdate looks up the latest release without downloading it.
// A dev build always counts as outdated.
func (s *Service) CheckForUpdate(ctx context.Context) (*UpdateInfo, error) {
	if !s.enabled {
		return nil, newError(ErrCodeDisabled, s.disabledReason, nil)
	}
	if !s.transitionTo(StateChecking, StateIdle, StateAvailable, StateError, StateUpdated, StateRolledBack) {
		return nil, newError(ErrCodeInvalidState, fmt.Sprintf("cannot check for updates in state %s", s.getState()), nil)
	}

	current := version.Version
	release, found, err := s.source.DetectLatest(ctx, s.repository)

	now := time.Now()
	s.mu.Lock()
	s.lastChecked = &now
	s.mu.Unlock()

	if err != nil {
		s.setError(err)
		return nil, newError(ErrCodeCheckFailed, "failed to check for updates", err)
	}
	if !found {
		err := fmt.Errorf("no release found for %s", s.slug)
		s.setError(err)
		return nil, newError(ErrCodeNotFound, err.Error(), nil)
	}

	info := &UpdateInfo{
		CurrentVersion: current,
		LatestVersion:  release.Version(),
	}
	if current != "dev" && !release.GreaterThan(current) {
		s.transitionTo(StateIdle)
		return info, nil
	}

	s.mu.Lock()
	s.latestRelease = release
	s.mu.Unlock()
	s.transitionTo(StateAvailable)

	info.ReleaseNotes = release.ReleaseNotes
	info.ReleaseURL = release.URL
	info.PublishedAt = release.PublishedAt
	info.AssetSize = release.AssetByteSize
	info.UpdateAvailable = true
	return info, nil
}

// ApplyUpdate backs up the current binary and replaces it with the latest
// release, checking first when needed. A failed replace restores the backup.
// The new binary takes effect on the next start.
func (s *Service) ApplyUpdate(ctx context.Context) (*UpdateInfo, error) {
	if !s.enabled {
		return nil, newError(ErrCodeDisabled, s.disabledReason, nil)
	}

	info, err := s.CheckForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	if !info.UpdateAvailable {
		return info, newError(ErrCodeNoUpdate, "already running the latest version "+info.LatestVersion, nil)
	}

	if !s.transitionTo(StateApplying, StateAvailable) {
		return nil, newError(ErrCodeInvalidState, fmt.Sprintf("cannot apply update in state %s", s.getState()), nil)
	}

	if s.backup != nil {
		if err := s.backup.createBackup(s.executable, info.CurrentVersion); err != nil {
			s.setError(err)
			return nil, newError(ErrCodeBackupFailed, "failed to create backup", err)
		}
	}

	s.mu.RLock()
	release := s.latestRelease
	s.mu.RUnlock()

	s.logger.Info("Applying update", "from", info.CurrentVersion, "to", info.LatestVersion, "path", s.executable)
	if err := s.source.UpdateTo(ctx, release, s.executable); err != nil {
		s.setError(err)
		s.attemptRollback()
		return nil, newError(ErrCodeApplyFailed, "failed to apply update", err)
	}

	s.transitionTo(StateUpdated)
	s.logger.Info("Update applied", "version", info.LatestVersion)
	return info, nil
}

// Rollback restores the binary saved by the last ApplyUpdate.
func (s *Service) Rollback(_ context.Context) error {
	if !s.enabled {
		return newError(ErrCodeDisabled, s.disabledReason, nil)
	}
	if s.backup == nil || !s.backup.hasBackup() {
		return newError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}
	if err := s.backup.restore(); err != nil {
		return newError(ErrCodeRollbackFailed, "failed to restore backup", err)
	}

	s.transitionTo(StateRolledBack)
	return nil
}

// GetStatus returns the updater state and backup details.
func (s *Service) GetStatus() *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &Status{
		State:          s.state,
		CurrentVersion: version.Version,
		LastChecked:    s.lastChecked,
	}
	if s.latestRelease != nil {
		status.TargetVersion = s.latestRelease.Version()
	}
	if s.lastError != nil {
		status.Error = s.lastError.Error()
	}
	if s.backup != nil {
		status.BackupAvailable = s.backup.hasBackup()
		status.BackupVersion = s.backup.backupVersion()
	}
	return status
}

func (s *Service) transitionTo(newState State, validFrom ...State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(validFrom) > 0 && !slices.Contains(validFrom, s.state) {
		return false
	}
	s.logger.Debug("State transition", "from", s.state, "to", newState)
	s.state = newState
	s.lastError = nil
	return true
}

func (s *Service) getState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) setError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.state = StateError
	s.mu.Unlock()
}

func (s *Service) attemptRollback() {
	if s.backup == nil || !s.backup.hasBackup() {
		s.logger.Error("No backup available for automatic rollback")
		return
	}
	if err := s.backup.restore(); err != nil {
		s.logger.Error("Failed to restore backup", "error", err)
		return
	}
	s.logger.Info("Automatic rollback completed")
}
