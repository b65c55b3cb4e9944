// Package systemd reports service readiness and batch status to systemd
// through sd_notify. Outside a systemd unit every call is a no-op.
package systemd

import (
	"fmt"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/vcompress/internal/events"
	"github.com/smazurov/vcompress/internal/logging"
)

// Subscriber is the subset of events.Bus the notifier needs.
type Subscriber interface {
	Subscribe(handler any) func()
}

// Notifier sends READY, STOPPING and STATUS messages.
type Notifier struct {
	logger logging.Logger

	mu     sync.Mutex
	total  int
	unsubs []func()
}

// NewNotifier creates a notifier.
func NewNotifier(logger logging.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Ready tells systemd the API is serving.
func (n *Notifier) Ready() {
	n.notify(daemon.SdNotifyReady)
}

// Stopping tells systemd shutdown has begun.
func (n *Notifier) Stopping() {
	n.notify(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) {
	n.notify("STATUS=" + msg)
}

// Watch mirrors batch progress into the status line until Close.
func (n *Notifier) Watch(bus Subscriber) {
	unsubs := []func(){
		bus.Subscribe(func(e events.OverallProgressEvent) {
			n.mu.Lock()
			n.total = e.Total
			n.mu.Unlock()
		}),
		bus.Subscribe(func(e events.FileStartedEvent) {
			n.mu.Lock()
			total := n.total
			n.mu.Unlock()
			n.Status(fmt.Sprintf("Encoding %s (%d/%d)", e.Name, e.Index+1, total))
		}),
		bus.Subscribe(func(e events.TerminalEvent) {
			n.Status(fmt.Sprintf("Idle, last batch %s: %d/%d files, %d failed", e.Status, e.Completed, e.Total, e.Failed))
		}),
	}

	n.mu.Lock()
	n.unsubs = append(n.unsubs, unsubs...)
	n.mu.Unlock()
}

// Close stops watching the bus.
func (n *Notifier) Close() {
	n.mu.Lock()
	unsubs := n.unsubs
	n.unsubs = nil
	n.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

func (n *Notifier) notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}
