package cmd

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/smazurov/vcompress/internal/events"
)

// progressStep is how many percent a file advances between progress lines.
const progressStep = 10

// consolePresenter prints batch events as plain lines for a terminal or a
// log file. It is called synchronously by the orchestrator.
type consolePresenter struct {
	mu     sync.Mutex
	w      io.Writer
	total  int
	eta    float64
	nextAt float64
}

func newConsolePresenter(w io.Writer) *consolePresenter {
	return &consolePresenter{w: w}
}

func (c *consolePresenter) Publish(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case events.OverallProgressEvent:
		c.total = e.Total
		if e.Completed > 0 {
			c.printf("Overall: %d/%d files (%.0f%%)\n", e.Completed, e.Total, e.Percent)
		}
	case events.FileStartedEvent:
		c.eta = 0
		c.nextAt = progressStep
		c.printf("[%d/%d] %s -> %s\n", e.Index+1, c.total, e.Name, e.Output)
		c.printf("        %s\n", e.Settings)
	case events.ETAEvent:
		c.eta = e.Seconds
	case events.FileProgressEvent:
		if e.Percent < c.nextAt {
			return
		}
		c.nextAt = (math.Floor(e.Percent/progressStep) + 1) * progressStep
		line := fmt.Sprintf("        %5.1f%%", e.Percent)
		if e.Speed > 0 {
			line += fmt.Sprintf("  %.2fx", e.Speed)
		}
		if c.eta > 0 {
			line += "  ETA " + formatETA(c.eta)
		}
		c.printf("%s\n", line)
	case events.FileFinishedEvent:
		switch {
		case e.Cancelled:
			c.printf("        cancelled, partial output left at %s\n", e.Output)
		case e.Success:
			c.printf("        done\n")
		default:
			c.printf("        FAILED: %s\n", e.Message)
		}
	case events.WarningEvent:
		c.printf("warning: %s: %s\n", e.Name, e.Message)
	case events.TerminalEvent:
		c.printf("Batch %s: %d of %d files processed, %d failed\n", e.Status, e.Completed, e.Total, e.Failed)
		if e.Message != "" {
			c.printf("  %s\n", e.Message)
		}
	}
}

func (c *consolePresenter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.w, format, args...)
}

// formatETA renders seconds as h:mm:ss or m:ss.
func formatETA(seconds float64) string {
	d := time.Duration(math.Round(seconds)) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
