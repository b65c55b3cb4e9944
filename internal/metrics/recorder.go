package metrics

import (
	"sync"

	"github.com/smazurov/vcompress/internal/events"
)

// Subscriber is the subset of events.Bus the recorder needs.
type Subscriber interface {
	Subscribe(handler any) func()
}

// Recorder mirrors batch events into the Prometheus metrics.
type Recorder struct {
	bus    Subscriber
	mu     sync.Mutex
	unsubs []func()
}

// NewRecorder creates a recorder for bus. Call Start to begin recording.
func NewRecorder(bus Subscriber) *Recorder {
	return &Recorder{bus: bus}
}

// Start subscribes to the batch events.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.unsubs) > 0 {
		return
	}

	r.unsubs = append(r.unsubs,
		r.bus.Subscribe(func(e events.OverallProgressEvent) {
			if e.Completed == 0 {
				SetRunning(true)
			}
			SetBatchProgress(e.Completed, e.Total)
		}),
		r.bus.Subscribe(func(_ events.FileStartedEvent) {
			ResetFile()
		}),
		r.bus.Subscribe(func(e events.FileProgressEvent) {
			SetFileProgress(e.Percent, e.Speed)
		}),
		r.bus.Subscribe(func(e events.ETAEvent) {
			SetETA(e.Seconds)
		}),
		r.bus.Subscribe(func(e events.FileFinishedEvent) {
			if !e.Success && !e.Cancelled {
				IncFilesFailed()
			}
		}),
		r.bus.Subscribe(func(e events.TerminalEvent) {
			IncRuns(e.Status)
			SetRunning(false)
			ResetFile()
		}),
	)
}

// Stop unsubscribes from the bus.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
}
