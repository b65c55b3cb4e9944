package updater

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/creativeprojects/go-selfupdate"
)

type fakeSource struct {
	found     bool
	err       error
	detects   int
	updateErr error
}

func (f *fakeSource) DetectLatest(context.Context, selfupdate.Repository) (*selfupdate.Release, bool, error) {
	f.detects++
	return nil, f.found, f.err
}

func (f *fakeSource) UpdateTo(context.Context, *selfupdate.Release, string) error {
	return f.updateErr
}

func newTestService(t *testing.T, src ReleaseSource) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, "vcompress")
	if err := os.WriteFile(exe, []byte("current"), 0o755); err != nil {
		t.Fatal(err)
	}

	svc, err := NewService(Options{
		Repository: "example/vcompress",
		BackupDir:  filepath.Join(dir, "backup"),
		Executable: exe,
		Source:     src,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if !svc.IsEnabled() {
		t.Fatalf("service disabled: %s", svc.DisabledReason())
	}
	return svc, exe
}

func TestCheckForUpdateNotFound(t *testing.T) {
	src := &fakeSource{}
	svc, _ := newTestService(t, src)

	_, err := svc.CheckForUpdate(context.Background())
	if !IsCode(err, ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}

	status := svc.GetStatus()
	if status.State != StateError || status.LastChecked == nil {
		t.Errorf("status = %+v", status)
	}
}

func TestCheckForUpdateSourceError(t *testing.T) {
	boom := errors.New("rate limited")
	svc, _ := newTestService(t, &fakeSource{err: boom})

	_, err := svc.CheckForUpdate(context.Background())
	if !IsCode(err, ErrCodeCheckFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected CHECK_FAILED wrapping the cause, got %v", err)
	}

	// A failed check can be retried.
	if _, err := svc.CheckForUpdate(context.Background()); !IsCode(err, ErrCodeCheckFailed) {
		t.Errorf("retry: got %v", err)
	}
}

func TestApplyUpdatePropagatesCheckError(t *testing.T) {
	src := &fakeSource{}
	svc, exe := newTestService(t, src)

	if _, err := svc.ApplyUpdate(context.Background()); !IsCode(err, ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if src.detects != 1 {
		t.Errorf("apply should check first, detects = %d", src.detects)
	}
	if data, _ := os.ReadFile(exe); string(data) != "current" {
		t.Error("binary should be untouched")
	}
	if svc.GetStatus().BackupAvailable {
		t.Error("no backup should be taken when nothing is applied")
	}
}

func TestRollbackWithoutBackup(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{})
	if err := svc.Rollback(context.Background()); !IsCode(err, ErrCodeNoBackup) {
		t.Errorf("expected NO_BACKUP, got %v", err)
	}
}

func TestRollbackRestoresBackup(t *testing.T) {
	svc, exe := newTestService(t, &fakeSource{})

	if err := svc.backup.createBackup(exe, "1.0.0"); err != nil {
		t.Fatalf("createBackup: %v", err)
	}
	if err := os.WriteFile(exe, []byte("broken"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := svc.Rollback(context.Background()); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	data, err := os.ReadFile(exe)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "current" {
		t.Errorf("binary = %q, want restored content", data)
	}

	status := svc.GetStatus()
	if status.State != StateRolledBack || !status.BackupAvailable || status.BackupVersion != "1.0.0" {
		t.Errorf("status = %+v", status)
	}
}

func TestBackupInfoSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "vcompress")
	if err := os.WriteFile(exe, []byte("v1"), 0o755); err != nil {
		t.Fatal(err)
	}

	first, err := newBackupManager(filepath.Join(dir, "backup"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := first.createBackup(exe, "1.2.3"); err != nil {
		t.Fatal(err)
	}

	second, err := newBackupManager(filepath.Join(dir, "backup"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if !second.hasBackup() || second.backupVersion() != "1.2.3" {
		t.Errorf("backup info not reloaded: has=%v version=%q", second.hasBackup(), second.backupVersion())
	}
}

func TestDisabledWhenDirectoryNotWritable(t *testing.T) {
	svc, err := NewService(Options{
		Executable: filepath.Join(t.TempDir(), "missing", "vcompress"),
		Source:     &fakeSource{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if svc.IsEnabled() || svc.DisabledReason() == "" {
		t.Fatal("service should be disabled")
	}
	if _, err := svc.CheckForUpdate(context.Background()); !IsCode(err, ErrCodeDisabled) {
		t.Errorf("expected DISABLED, got %v", err)
	}
	if _, err := svc.ApplyUpdate(context.Background()); !IsCode(err, ErrCodeDisabled) {
		t.Errorf("expected DISABLED, got %v", err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
