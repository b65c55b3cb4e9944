package events

import (
	"sync/atomic"

	"github.com/kelindar/event"
)

// Publisher is implemented by anything that accepts events from a run.
// Publish must be safe to call from the batch goroutine.
type Publisher interface {
	Publish(ev Event)
}

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Delivery is asynchronous; each subscriber sees events of one type in
// publish order. Subscribe to RunEvent for order across types.
type Bus struct {
	dispatcher *event.Dispatcher
	dropped    atomic.Uint64
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. Run events are also
// published wrapped in a RunEvent for ordered consumers.
// Usage: bus.Publish(FileProgressEvent{...})
func (b *Bus) Publish(ev Event) {
	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case OverallProgressEvent:
		event.Publish(b.dispatcher, e)
	case FileStartedEvent:
		event.Publish(b.dispatcher, e)
	case FileProgressEvent:
		event.Publish(b.dispatcher, e)
	case ETAEvent:
		event.Publish(b.dispatcher, e)
	case ThumbnailEvent:
		event.Publish(b.dispatcher, e)
	case FileFinishedEvent:
		event.Publish(b.dispatcher, e)
	case WarningEvent:
		event.Publish(b.dispatcher, e)
	case TerminalEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
		return
	default:
		return
	}
	event.Publish(b.dispatcher, RunEvent{Event: ev})
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e TerminalEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(OverallProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FileStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FileProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ETAEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ThumbnailEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FileFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(WarningEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TerminalEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Publishers fans one event out to several publishers in order.
// The terminal presenter uses it to render synchronously next to the bus.
type Publishers []Publisher

// Publish implements Publisher.
func (ps Publishers) Publish(ev Event) {
	for _, p := range ps {
		if p != nil {
			p.Publish(ev)
		}
	}
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(ev Event) { f(ev) }
