package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/gotasklist/internal/events"
)

// registerSSERoutes registers the monitor event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of task starts and exits, snapshots, monitor errors and query reloads",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"task-started":     events.TaskStartedEvent{},
		"task-exited":      events.TaskExitedEvent{},
		"snapshot":         events.SnapshotEvent{},
		"monitor-error":    events.MonitorErrorEvent{},
		"queries-reloaded": events.QueriesReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.TaskStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TaskExitedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SnapshotEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.MonitorErrorEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.QueriesReloadedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Tell the client which queries exist before the first monitor event.
		if s.queries != nil {
			if err := send.Data(events.QueriesReloadedEvent{Names: s.queries.Names()}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
