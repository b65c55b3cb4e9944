package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/vcompress/internal/batch"
	"github.com/smazurov/vcompress/internal/events"
)

const eventBufferSize = 64

// batchEventTypes maps SSE event names to payloads.
var batchEventTypes = map[string]any{
	"status":           batch.Snapshot{},
	"overall-progress": events.OverallProgressEvent{},
	"file-started":     events.FileStartedEvent{},
	"file-progress":    events.FileProgressEvent{},
	"eta":              events.ETAEvent{},
	"thumbnail":        events.ThumbnailEvent{},
	"file-finished":    events.FileFinishedEvent{},
	"warning":          events.WarningEvent{},
	"terminal":         events.TerminalEvent{},
}

// registerSSERoutes registers the run event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Run Event Stream",
		Description: "Sends the current status, then progress, ETA, thumbnail, per-file and terminal events of every run",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, batchEventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan events.Event, eventBufferSize)
		done := make(chan struct{})
		unsubscribe := events.SubscribeRunEvents(s.bus, eventCh, done)
		defer unsubscribe()
		defer close(done)
		defer func() {
			s.logger.Debug("Event stream closed", "dropped_total", s.bus.Dropped())
		}()

		// Subscribe first so nothing between the snapshot and the loop is lost.
		if err := send.Data(s.orch.Snapshot()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
