package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch for select-based
// consumers such as SSE handlers. A full channel drops the event and
// counts it in Dropped, so a slow client never stalls the run.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			bus.dropped.Add(1)
		}
	})
}

// SubscribeRunEvents forwards every run event into ch in publish order
// through a single subscriber. Droppable events are skipped when ch is
// full; the rest wait for room until done is closed. Close done before
// calling the returned unsubscribe.
func SubscribeRunEvents(bus *Bus, ch chan<- Event, done <-chan struct{}) func() {
	return event.Subscribe(bus.dispatcher, func(e RunEvent) {
		if Droppable(e.Event) {
			select {
			case ch <- e.Event:
			default:
				bus.dropped.Add(1)
			}
			return
		}
		select {
		case ch <- e.Event:
		case <-done:
		}
	})
}

// Dropped returns how many events channel subscribers have missed.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
