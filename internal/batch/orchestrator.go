package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/vcompress/internal/events"
	"github.com/smazurov/vcompress/internal/ffmpeg"
	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/settings"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	// fallbackDuration stands in when the duration probe fails.
	fallbackDuration = 1.0
)

// Options configures an Orchestrator.
type Options struct {
	List      *List
	Store     *settings.Store
	Prober    DurationProber
	Launcher  Launcher
	Sampler   ThumbnailSampler // nil disables thumbnails
	Publisher events.Publisher // nil drops events
	Logger    logging.Logger

	OutputDir string
	// Defaults is the bundle given to newly added files.
	Defaults settings.Bundle
	// PollInterval is how often a paused run rechecks its flags.
	PollInterval time.Duration

	// Now and NewRunID are replaced in tests.
	Now      func() time.Time
	NewRunID func() string
}

// Orchestrator runs the batch one file at a time on a background goroutine.
// Pause and cancel are cooperative flags checked at every output line.
type Orchestrator struct {
	list      *List
	store     *settings.Store
	prober    DurationProber
	launcher  Launcher
	sampler   ThumbnailSampler
	publisher events.Publisher
	logger    logging.Logger
	poll      time.Duration
	now       func() time.Time
	newRunID  func() string

	paused    atomic.Bool
	cancelled atomic.Bool

	mu        sync.Mutex
	running   bool
	outputDir string
	defaults  settings.Bundle
	done      chan struct{}
	snap      Snapshot
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		list:      opts.List,
		store:     opts.Store,
		prober:    opts.Prober,
		launcher:  opts.Launcher,
		sampler:   opts.Sampler,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		poll:      opts.PollInterval,
		now:       opts.Now,
		newRunID:  opts.NewRunID,
		outputDir: opts.OutputDir,
		defaults:  opts.Defaults,
	}
	if o.list == nil {
		o.list = NewList()
	}
	if o.logger == nil {
		o.logger = logging.GetLogger("batch")
	}
	if o.store == nil {
		o.store = settings.NewStore()
	}
	if o.poll <= 0 {
		o.poll = defaultPollInterval
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	if o.defaults == (settings.Bundle{}) {
		o.defaults = settings.Defaults(settings.HardwareAvailable())
	}
	o.snap = Snapshot{State: StateIdle, CurrentIndex: -1, OutputDir: o.outputDir}
	return o
}

// Store returns the settings store backing the orchestrator.
func (o *Orchestrator) Store() *settings.Store {
	return o.store
}

// Files returns the input paths in processing order.
func (o *Orchestrator) Files() []string {
	return o.list.Files()
}

// File returns the input path at index i.
func (o *Orchestrator) File(i int) (string, error) {
	return o.list.At(i)
}

// Defaults returns the bundle given to newly added files.
func (o *Orchestrator) Defaults() settings.Bundle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.defaults
}

// SetDefaults changes the bundle given to files added from now on.
func (o *Orchestrator) SetDefaults(b settings.Bundle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.defaults = b
}

// AddFiles appends new paths and gives each the default bundle.
// Paths already in the batch are skipped. Returns the paths added.
func (o *Orchestrator) AddFiles(paths ...string) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil, ErrBusy
	}

	added := o.list.Add(paths...)
	for _, p := range added {
		o.store.Put(p, o.defaults)
	}
	return added, nil
}

// SetFileSettings replaces the bundle of a listed file. The running check
// and the write happen under one lock, so a run never sees a bundle change.
func (o *Orchestrator) SetFileSettings(path string, b settings.Bundle) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrBusy
	}
	if !slices.Contains(o.list.Files(), path) {
		return fmt.Errorf("%w for %s", settings.ErrMissingSettings, path)
	}
	o.store.Put(path, b)
	return nil
}

// RemoveFile drops the path at index i together with its settings.
func (o *Orchestrator) RemoveFile(i int) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return "", ErrBusy
	}

	p, err := o.list.Remove(i)
	if err != nil {
		return "", err
	}
	o.store.Remove(p)
	return p, nil
}

// ClearFiles empties the batch and the settings store.
func (o *Orchestrator) ClearFiles() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrBusy
	}

	o.list.Clear()
	o.store.Clear()
	return nil
}

// MoveUp moves the file at index i one position earlier.
func (o *Orchestrator) MoveUp(i int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrBusy
	}
	return o.list.MoveUp(i)
}

// MoveDown moves the file at index i one position later.
func (o *Orchestrator) MoveDown(i int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrBusy
	}
	return o.list.MoveDown(i)
}

// SetOutputDir sets where transcodes are written.
func (o *Orchestrator) SetOutputDir(dir string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrBusy
	}
	o.outputDir = dir
	o.snap.OutputDir = dir
	return nil
}

// OutputDir returns the configured output directory.
func (o *Orchestrator) OutputDir() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outputDir
}

// Pause asks the running batch to stop reading encoder output.
// Idempotent; ignored when no run is active.
func (o *Orchestrator) Pause() {
	if !o.isRunning() {
		return
	}
	if o.paused.CompareAndSwap(false, true) {
		o.logger.Info("Batch paused")
	}
}

// Resume clears the pause flag. Idempotent.
func (o *Orchestrator) Resume() {
	if o.paused.CompareAndSwap(true, false) {
		o.logger.Info("Batch resumed")
	}
}

// Cancel stops the run at the next output line or pause check.
// The current encoder is terminated; its partial output stays on disk.
// Idempotent; ignored when no run is active.
func (o *Orchestrator) Cancel() {
	if !o.isRunning() {
		return
	}
	if o.cancelled.CompareAndSwap(false, true) {
		o.logger.Info("Batch cancel requested")
	}
}

// Paused reports whether the pause flag is set.
func (o *Orchestrator) Paused() bool {
	return o.paused.Load()
}

// Snapshot returns the current state and counters.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.snap
	switch {
	case !o.running:
		s.State = StateIdle
	case o.paused.Load():
		s.State = StatePaused
	default:
		s.State = StateRunning
	}
	return s
}

// Start validates preconditions and runs the batch in the background.
// Precondition failures are returned before any process is launched.
func (o *Orchestrator) Start(ctx context.Context) error {
	files, outDir, err := o.begin()
	if err != nil {
		return err
	}

	// Failures are reported through the terminal event and the log.
	go func() { _, _ = o.run(ctx, files, outDir) }()
	return nil
}

// Run is the synchronous form of Start. It returns when the run ends.
// A failed run also returns the error that ended it.
func (o *Orchestrator) Run(ctx context.Context) (Status, error) {
	files, outDir, err := o.begin()
	if err != nil {
		return "", err
	}
	return o.run(ctx, files, outDir)
}

// Wait blocks until the current run has finished. It returns at once when idle.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) isRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// begin checks preconditions and marks the orchestrator running.
func (o *Orchestrator) begin() ([]string, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return nil, "", ErrAlreadyRunning
	}
	files := o.list.Files()
	if len(files) == 0 {
		return nil, "", ErrEmptyBatch
	}
	if o.outputDir == "" {
		return nil, "", ErrNoOutputDirectory
	}
	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create output directory: %w", err)
	}

	o.running = true
	o.done = make(chan struct{})
	o.paused.Store(false)
	o.cancelled.Store(false)
	o.snap = Snapshot{
		OutputDir:    o.outputDir,
		Total:        len(files),
		CurrentIndex: -1,
	}
	return files, o.outputDir, nil
}

// finish resets the flags so the next run starts clean.
func (o *Orchestrator) finish() {
	o.paused.Store(false)
	o.cancelled.Store(false)

	o.mu.Lock()
	o.running = false
	close(o.done)
	o.mu.Unlock()
}

// fileOutcome is how one file's encode ended.
type fileOutcome struct {
	cancelled bool
	success   bool
}

func (o *Orchestrator) run(ctx context.Context, files []string, outDir string) (Status, error) {
	runID := o.newRunID()
	total := len(files)
	completed, failed := 0, 0

	o.mu.Lock()
	o.snap.RunID = runID
	o.mu.Unlock()

	// Context cancellation is treated like a user cancel.
	stop := context.AfterFunc(ctx, func() { o.cancelled.Store(true) })
	defer stop()

	o.logger.Info("Batch started", "run_id", runID, "files", total, "output_dir", outDir)
	o.emit(events.OverallProgressEvent{RunID: runID, Completed: 0, Total: total, Percent: 0})

	if err := o.checkSettings(files); err != nil {
		return o.terminate(runID, StatusFailed, completed, failed, total, err)
	}

	// One throttle clock for the whole batch.
	var lastThumb time.Time
	status := StatusCompleted
	for idx, file := range files {
		if o.cancelled.Load() {
			status = StatusCancelled
			break
		}

		outcome, err := o.processFile(ctx, runID, idx, file, outDir, &lastThumb)
		if err != nil {
			return o.terminate(runID, StatusFailed, completed, failed, total, err)
		}
		if outcome.cancelled {
			status = StatusCancelled
			break
		}
		if !outcome.success {
			failed++
		}

		completed++
		o.emit(events.OverallProgressEvent{
			RunID:     runID,
			Completed: completed,
			Total:     total,
			Percent:   float64(completed) / float64(total) * 100,
		})
	}

	return o.terminate(runID, status, completed, failed, total, nil)
}

// checkSettings fails fast when any file lacks a bundle.
func (o *Orchestrator) checkSettings(files []string) error {
	for _, f := range files {
		if _, err := o.store.Get(f); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) processFile(ctx context.Context, runID string, idx int, file, outDir string, lastThumb *time.Time) (fileOutcome, error) {
	bundle, err := o.store.Get(file)
	if err != nil {
		return fileOutcome{}, err
	}

	name := filepath.Base(file)
	start := o.now()

	duration, err := o.prober.Duration(ctx, file)
	if err != nil {
		o.logger.Warn("Duration probe failed, progress will be approximate", "file", file, "error", err)
		o.emit(events.WarningEvent{RunID: runID, Name: name, Message: "could not read duration; progress is approximate: " + err.Error()})
		duration = fallbackDuration
	}

	output := ffmpeg.OutputPath(outDir, file)
	args := ffmpeg.BuildTranscodeArgs(file, bundle, output)
	summary := bundle.Summary()

	o.emit(events.FileStartedEvent{
		RunID:     runID,
		Index:     idx,
		Name:      name,
		Input:     file,
		Output:    output,
		Duration:  duration,
		Settings:  summary,
		Timestamp: o.now().Format(time.RFC3339),
	})
	o.logger.Info("Encoding file", "run_id", runID, "index", idx, "file", file, "output", output, "settings", summary)

	proc, err := o.launcher.Launch(name, args)
	if err != nil {
		o.logger.Error("Failed to launch encoder", "file", file, "error", err)
		o.emit(events.FileFinishedEvent{
			RunID:     runID,
			Index:     idx,
			Name:      name,
			Output:    output,
			ExitCode:  -1,
			Message:   err.Error(),
			Timestamp: o.now().Format(time.RFC3339),
		})
		return fileOutcome{}, nil
	}

	trimOffset, _ := ffmpeg.ParseClock(bundle.TrimStart)
	cancelled := false
	for line := range proc.Lines() {
		o.waitWhilePaused()
		if o.cancelled.Load() {
			cancelled = true
			break
		}

		ev, ok := ffmpeg.ParseProgress(line)
		if !ok {
			continue
		}

		elapsed := o.now().Sub(start).Seconds()
		o.emit(events.FileProgressEvent{
			RunID:    runID,
			Index:    idx,
			Name:     name,
			Percent:  ffmpeg.FilePercent(ev.Position, duration),
			Position: ev.Position,
			Duration: duration,
			Speed:    ev.Speed,
			Settings: summary,
		})
		o.emit(events.ETAEvent{
			RunID:   runID,
			Name:    name,
			Seconds: ffmpeg.ComputeETA(elapsed, ev.Position, duration),
		})

		if o.sampler != nil {
			// time= counts from the trim point; the frame is read from the input.
			at := trimOffset + ev.Position
			if img, ok := o.sampler.MaybeSample(ctx, file, at, lastThumb); ok {
				o.emit(events.ThumbnailEvent{RunID: runID, Name: name, Position: at, ImageData: img})
			}
		}
	}

	var code int
	if cancelled {
		code = proc.Terminate()
	} else {
		code = proc.Wait()
	}

	finished := events.FileFinishedEvent{
		RunID:     runID,
		Index:     idx,
		Name:      name,
		Output:    output,
		Success:   code == 0 && !cancelled,
		ExitCode:  code,
		Cancelled: cancelled,
		Timestamp: o.now().Format(time.RFC3339),
	}
	switch {
	case cancelled:
		finished.Message = "cancelled; partial output left on disk"
	case code != 0:
		finished.Message = fmt.Sprintf("ffmpeg exited with code %d", code)
		o.logger.Warn("Encoder failed", "file", file, "exit_code", code)
	default:
		o.logger.Info("File finished", "file", file, "output", output, "took", o.now().Sub(start).Round(time.Millisecond))
	}
	o.emit(finished)

	return fileOutcome{cancelled: cancelled, success: finished.Success}, nil
}

// waitWhilePaused blocks while the pause flag is set, rechecking every poll
// interval. A cancel request ends the wait.
func (o *Orchestrator) waitWhilePaused() {
	if !o.paused.Load() {
		return
	}

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()
	for o.paused.Load() && !o.cancelled.Load() {
		<-ticker.C
	}
}

func (o *Orchestrator) terminate(runID string, status Status, completed, failed, total int, cause error) (Status, error) {
	ev := events.TerminalEvent{
		RunID:     runID,
		Status:    string(status),
		Completed: completed,
		Failed:    failed,
		Total:     total,
		Timestamp: o.now().Format(time.RFC3339),
	}
	if cause != nil {
		ev.Message = cause.Error()
		o.logger.Error("Batch failed", "run_id", runID, "error", cause)
	} else {
		o.logger.Info("Batch finished", "run_id", runID, "status", status, "completed", completed, "failed", failed, "total", total)
	}

	o.emit(ev)
	o.finish()
	return status, cause
}

// emit records the event in the snapshot and forwards it.
func (o *Orchestrator) emit(ev events.Event) {
	o.mu.Lock()
	switch e := ev.(type) {
	case events.OverallProgressEvent:
		o.snap.Completed = e.Completed
		o.snap.Total = e.Total
	case events.FileStartedEvent:
		o.snap.CurrentIndex = e.Index
		o.snap.CurrentFile = e.Name
		o.snap.Settings = e.Settings
		o.snap.FilePercent = 0
		o.snap.ETASeconds = 0
	case events.FileProgressEvent:
		o.snap.FilePercent = e.Percent
	case events.ETAEvent:
		o.snap.ETASeconds = e.Seconds
	case events.FileFinishedEvent:
		if !e.Success && !e.Cancelled {
			o.snap.Failed++
		}
	case events.TerminalEvent:
		o.snap.LastStatus = Status(e.Status)
		o.snap.LastError = e.Message
		o.snap.CurrentIndex = -1
		o.snap.CurrentFile = ""
		o.snap.Settings = ""
	}
	o.mu.Unlock()

	if o.publisher != nil {
		o.publisher.Publish(ev)
	}
}
