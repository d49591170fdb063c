package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish delivers ev to the subscribers of its concrete type. Unknown
// event types are dropped.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case TaskStartedEvent:
		event.Publish(b.dispatcher, e)
	case TaskExitedEvent:
		event.Publish(b.dispatcher, e)
	case SnapshotEvent:
		event.Publish(b.dispatcher, e)
	case MonitorErrorEvent:
		event.Publish(b.dispatcher, e)
	case QueriesReloadedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler whose parameter type selects the events it
// receives, e.g. bus.Subscribe(func(e TaskExitedEvent) { ... }). Returns an
// unsubscribe function; unknown handler types get a no-op.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(TaskStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TaskExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SnapshotEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MonitorErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(QueriesReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
