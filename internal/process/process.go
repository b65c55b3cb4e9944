package process

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/vcompress/internal/logging"
)

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, ffprobe, etc.)
type LogParser func(line string) (level, msg string)

const (
	defaultGracefulTimeout = 5 * time.Second
	defaultKillTimeout     = 5 * time.Second
	maxLineSize            = 1 << 20

	// ExitKilled is reported when the child had to be force killed.
	ExitKilled = 137
)

// Process manages the lifecycle of one subprocess.
type Process struct {
	id              string
	binary          string
	args            []string
	cmd             *exec.Cmd
	stderr          io.ReadCloser
	logger          logging.Logger
	processLogger   logging.Logger // logger for process output (nil = use logger)
	logParser       LogParser      // parses process output for log level (nil = no parsing)
	gracefulTimeout time.Duration  // timeout for graceful shutdown before force kill
	killTimeout     time.Duration  // timeout after Kill() before giving up

	waitOnce sync.Once
	exited   chan struct{}
	exitCode int
}

// New creates a process that will run binary with args.
func New(id, binary string, args []string, logger logging.Logger) *Process {
	return &Process{
		id:              id,
		binary:          binary,
		args:            args,
		logger:          logger,
		gracefulTimeout: defaultGracefulTimeout,
		killTimeout:     defaultKillTimeout,
		exited:          make(chan struct{}),
	}
}

// SetLogParser sets a custom logger and log parser for process output.
// The logger is used for process output (e.g., module="ffmpeg").
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetGracefulTimeout changes how long Terminate waits after SIGINT.
func (p *Process) SetGracefulTimeout(d time.Duration) {
	if d > 0 {
		p.gracefulTimeout = d
	}
}

// Args returns the argument list the process was created with.
func (p *Process) Args() []string {
	return p.args
}

// Start launches the subprocess with stderr captured. Stdout is discarded.
func (p *Process) Start() error {
	p.cmd = exec.Command(p.binary, p.args...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		p.logger.Error("Failed to create stderr pipe", "error", err)
		return err
	}
	p.stderr = stderr

	if err := p.cmd.Start(); err != nil {
		p.logger.Error("Failed to start process", "error", err, "binary", p.binary)
		return fmt.Errorf("start %s: %w", p.binary, err)
	}

	p.logger.Info("Process started", "id", p.id, "pid", p.cmd.Process.Pid)
	p.logger.Debug("Process command", "id", p.id, "binary", p.binary, "args", p.args)
	return nil
}

// Lines yields stderr one line at a time until EOF or until the consumer stops.
// ffmpeg refreshes its stats line with a bare CR, so CR also ends a line.
// Every line is logged through the configured parser before it is yielded.
func (p *Process) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		if p.stderr == nil {
			return
		}

		scanner := bufio.NewScanner(p.stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		scanner.Split(scanLines)

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			p.logLine(line)
			if !yield(line) {
				return
			}
		}

		if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
			p.logger.Warn("Error reading output", "id", p.id, "error", err)
		}
	}
}

// Wait drains any unread output, waits for the child and returns its exit code.
// Safe to call more than once.
func (p *Process) Wait() int {
	p.startWaiter()
	<-p.exited
	return p.exitCode
}

// Terminate asks the child to stop with SIGINT and force kills it after the
// graceful timeout. Returns the exit code, or ExitKilled after a kill.
func (p *Process) Terminate() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	p.startWaiter()

	select {
	case <-p.exited:
		return p.exitCode
	default:
	}

	p.sendStopSignal()
	return p.waitForExit(p.gracefulTimeout)
}

// startWaiter reaps the child once. Output is drained first so a child
// blocked on a full pipe can exit.
func (p *Process) startWaiter() {
	p.waitOnce.Do(func() {
		if p.cmd == nil || p.cmd.Process == nil {
			p.exitCode = 1
			close(p.exited)
			return
		}
		go func() {
			if p.stderr != nil {
				_, _ = io.Copy(io.Discard, p.stderr)
			}
			p.exitCode = p.handleProcessExit(p.cmd.Wait())
			close(p.exited)
		}()
	})
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		// Killed by a signal.
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
	}
	return 1
}

// handleProcessExit extracts exit code from process error and logs non-ExitError errors.
func (p *Process) handleProcessExit(processErr error) int {
	exitCode := exitCodeFromError(processErr)
	var exitErr *exec.ExitError
	if processErr != nil && !errors.As(processErr, &exitErr) {
		p.logger.Error("Process exited with error", "id", p.id, "error", processErr)
	}
	p.logger.Info("Process exited", "id", p.id, "exit_code", exitCode)
	return exitCode
}

// sendStopSignal sends SIGINT to the process group without waiting.
func (p *Process) sendStopSignal() {
	p.logger.Info("Sending SIGINT to process", "id", p.id, "pid", p.cmd.Process.Pid)
	if err := p.signalGroup(syscall.SIGINT); err != nil {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// signalGroup signals the whole process group so helpers spawned by the
// child stop too, falling back to the child alone.
func (p *Process) signalGroup(sig syscall.Signal) error {
	pid := p.cmd.Process.Pid
	if err := syscall.Kill(-pid, sig); err == nil {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

// waitForExit waits for the process to exit with a timeout, force-killing if needed.
func (p *Process) waitForExit(timeout time.Duration) int {
	select {
	case <-p.exited:
		return p.exitCode
	case <-time.After(timeout):
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "id", p.id, "timeout", timeout)
		if err := p.signalGroup(syscall.SIGKILL); err != nil {
			// "os: process already finished" is OK - process exited between timeout and kill
			if !errors.Is(err, os.ErrProcessDone) {
				p.logger.Error("Failed to kill process", "error", err)
			}
		}
		// Wait for process to exit with a secondary timeout to prevent hanging
		select {
		case <-p.exited:
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal", "id", p.id)
		}
		return ExitKilled
	}
}

// logLine routes one output line to the process logger.
// Informational chatter goes to debug; progress lines arrive twice a second.
func (p *Process) logLine(line string) {
	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	level, msg := "info", line
	if p.logParser != nil {
		level, msg = p.logParser(line)
	}

	switch level {
	case "panic", "fatal", "error":
		logger.Error(msg, "id", p.id)
	case "warning":
		logger.Warn(msg, "id", p.id)
	default:
		logger.Debug(msg, "id", p.id)
	}
}

// scanLines is bufio.ScanLines that also splits on a bare CR.
// A CRLF pair produces an empty token which Lines skips.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
