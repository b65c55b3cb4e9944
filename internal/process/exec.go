package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/smazurov/vcompress/internal/logging"
)

// Runner runs a command to completion and returns its stdout.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Exec is the os/exec backed Runner.
type Exec struct {
	Logger logging.Logger
}

// Output runs name with args. A non-zero exit is an error carrying the
// trimmed stderr of the command.
func (e Exec) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if e.Logger != nil {
		e.Logger.Debug("Command finished", "binary", name, "args", args, "exit_code", exitCodeFromError(err), "bytes", len(out))
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
