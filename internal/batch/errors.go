package batch

import "errors"

var (
	// ErrEmptyBatch is returned by Start when no files were added.
	ErrEmptyBatch = errors.New("no input files selected")
	// ErrNoOutputDirectory is returned by Start when no output directory is set.
	ErrNoOutputDirectory = errors.New("no output directory selected")
	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("batch already running")
	// ErrBusy rejects list changes while a run is active.
	ErrBusy = errors.New("batch is running")
	// ErrIndexOutOfRange rejects list operations on a missing position.
	ErrIndexOutOfRange = errors.New("index out of range")
)
