package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan FileProgressEvent, 1)

	unsub := bus.Subscribe(func(e FileProgressEvent) {
		received <- e
	})
	defer unsub()

	ev := FileProgressEvent{Name: "clip.mov", Percent: 50, Position: 90, Duration: 180}
	bus.Publish(ev)

	got := <-received
	if got.Name != ev.Name || got.Percent != ev.Percent {
		t.Errorf("got %+v, want %+v", got, ev)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan TerminalEvent, 1)
	received2 := make(chan TerminalEvent, 1)

	unsub1 := bus.Subscribe(func(e TerminalEvent) { received1 <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e TerminalEvent) { received2 <- e })
	defer unsub2()

	bus.Publish(TerminalEvent{Status: StatusCompleted})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan ETAEvent, 1)

	unsub := bus.Subscribe(func(e ETAEvent) { received <- e })

	bus.Publish(ETAEvent{Seconds: 10})
	<-received

	unsub()

	bus.Publish(ETAEvent{Seconds: 5})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	thumbReceived := make(chan bool, 1)
	warnReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ ThumbnailEvent) { thumbReceived <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ WarningEvent) { warnReceived <- true })
	defer unsub2()

	bus.Publish(ThumbnailEvent{Name: "a.mov"})
	<-thumbReceived

	select {
	case <-warnReceived:
		t.Fatal("Warning subscriber should NOT have received ThumbnailEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(WarningEvent{Message: "probe failed"})
	<-warnReceived

	select {
	case <-thumbReceived:
		t.Fatal("Thumbnail subscriber should NOT have received WarningEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_OrderPerSubscriber(t *testing.T) {
	bus := New()
	const n = 200
	received := make(chan float64, n)

	unsub := bus.Subscribe(func(e FileProgressEvent) { received <- e.Position })
	defer unsub()

	for i := range n {
		bus.Publish(FileProgressEvent{Position: float64(i)})
	}

	for i := range n {
		if got := <-received; got != float64(i) {
			t.Fatalf("event %d has position %v", i, got)
		}
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ OverallProgressEvent) { receivedCh <- true })
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(OverallProgressEvent{Completed: 1, Total: 2, Percent: 50})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_UnknownHandler(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestPublishersFanOut(t *testing.T) {
	var first, second []Event
	ps := Publishers{
		PublisherFunc(func(ev Event) { first = append(first, ev) }),
		nil,
		PublisherFunc(func(ev Event) { second = append(second, ev) }),
	}

	ps.Publish(ETAEvent{Seconds: 1})
	ps.Publish(TerminalEvent{Status: StatusCancelled})

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("fan-out delivered %d and %d events, want 2 and 2", len(first), len(second))
	}
	if _, ok := second[1].(TerminalEvent); !ok {
		t.Errorf("second event should be TerminalEvent, got %T", second[1])
	}
}

func TestThumbnailEventEncodesBase64(t *testing.T) {
	data, err := json.Marshal(ThumbnailEvent{Name: "a.mov", ImageData: []byte{0xff, 0xd8}})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if result["image_data"] != "/9g=" {
		t.Errorf("image_data = %v, want /9g=", result["image_data"])
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[FileFinishedEvent](bus, ch)
	defer unsub()

	bus.Publish(FileFinishedEvent{Name: "a.mov", ExitCode: 1})

	received := <-ch
	finished, ok := received.(FileFinishedEvent)
	if !ok {
		t.Fatalf("Expected FileFinishedEvent, got %T", received)
	}
	if finished.ExitCode != 1 {
		t.Errorf("Expected exit code 1, got %d", finished.ExitCode)
	}
}

func TestSubscribeToChannel_NonBlocking(t *testing.T) {
	bus := New()
	ch := make(chan any)

	unsub := SubscribeToChannel[FileStartedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(FileStartedEvent{Name: "a.mov"})
		done <- true
	}()

	<-done

	deadline := time.Now().Add(time.Second)
	for bus.Dropped() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := bus.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestSubscribeRunEvents_KeepsOrderAcrossTypes(t *testing.T) {
	bus := New()
	ch := make(chan Event, 1024)
	done := make(chan struct{})

	unsub := SubscribeRunEvents(bus, ch, done)
	defer unsub()
	defer close(done)

	const rounds = 200
	for i := range rounds {
		bus.Publish(FileProgressEvent{Index: i})
		bus.Publish(OverallProgressEvent{Completed: i})
		bus.Publish(TerminalEvent{Completed: i})
	}

	for i := range rounds {
		for slot := range 3 {
			var ev Event
			select {
			case ev = <-ch:
			case <-time.After(time.Second):
				t.Fatalf("round %d slot %d: timed out", i, slot)
			}
			want := []uint32{TypeFileProgress, TypeOverallProgress, TypeTerminal}[slot]
			if ev.Type() != want {
				t.Fatalf("round %d slot %d: got %T, want type %d", i, slot, ev, want)
			}
		}
	}
}

func TestSubscribeRunEvents_NeverDropsLifecycleEvents(t *testing.T) {
	bus := New()
	ch := make(chan Event, 1)
	done := make(chan struct{})

	unsub := SubscribeRunEvents(bus, ch, done)
	defer unsub()
	defer close(done)

	bus.Publish(FileStartedEvent{Name: "a.mov"})
	bus.Publish(ThumbnailEvent{Name: "a.mov"})
	bus.Publish(FileFinishedEvent{Name: "a.mov"})
	bus.Publish(TerminalEvent{Status: StatusCompleted})

	var got []Event
	deadline := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case ev := <-ch:
			if !Droppable(ev) {
				got = append(got, ev)
			}
		case <-deadline:
			t.Fatalf("received %d lifecycle events, want 3", len(got))
		}
	}
	if _, ok := got[2].(TerminalEvent); !ok {
		t.Errorf("last event = %T, want TerminalEvent", got[2])
	}
}

func TestBus_LogEntriesAreNotRunEvents(t *testing.T) {
	bus := New()
	received := make(chan RunEvent, 1)

	unsub := bus.Subscribe(func(e RunEvent) { received <- e })
	defer unsub()

	bus.Publish(LogEntryEvent{Message: "hello"})
	bus.Publish(WarningEvent{Name: "a.mov"})

	got := <-received
	if _, ok := got.Event.(WarningEvent); !ok {
		t.Errorf("first run event = %T, want WarningEvent", got.Event)
	}
}
