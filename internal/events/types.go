package events

import "github.com/smazurov/gotasklist/internal/api/models"

// Event type constants for kelindar/event.
const (
	TypeTaskStarted uint32 = iota + 1
	TypeTaskExited
	TypeSnapshot
	TypeMonitorError
	TypeQueriesReloaded
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// TaskStartedEvent is published when a process appears between two
// snapshots of the same query.
type TaskStartedEvent struct {
	Query     string          `json:"query" example:"svchost" doc:"Query that observed the task"`
	Task      models.TaskData `json:"task" doc:"The new task"`
	Timestamp string          `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Snapshot timestamp"`
}

// Type returns the event type identifier for TaskStartedEvent.
func (e TaskStartedEvent) Type() uint32 { return TypeTaskStarted }

// TaskExitedEvent is published when a process from the previous snapshot
// is gone.
type TaskExitedEvent struct {
	Query     string          `json:"query" example:"svchost" doc:"Query that observed the task"`
	Task      models.TaskData `json:"task" doc:"Last known state of the task"`
	Timestamp string          `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Snapshot timestamp"`
}

// Type returns the event type identifier for TaskExitedEvent.
func (e TaskExitedEvent) Type() uint32 { return TypeTaskExited }

// SnapshotEvent summarizes one poll.
type SnapshotEvent struct {
	Query     string `json:"query" example:"svchost" doc:"Query name"`
	Schema    string `json:"schema" example:"default" doc:"Column layout"`
	Count     int    `json:"count" example:"87" doc:"Number of tasks"`
	Started   int    `json:"started" example:"2" doc:"Tasks new since the previous snapshot"`
	Exited    int    `json:"exited" example:"1" doc:"Tasks gone since the previous snapshot"`
	MemUsage  int64  `json:"mem_usage" example:"1073741824" doc:"Sum of memory usage in bytes"`
	Duration  string `json:"duration" example:"312ms" doc:"How long tasklist took"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Snapshot timestamp"`
}

// Type returns the event type identifier for SnapshotEvent.
func (e SnapshotEvent) Type() uint32 { return TypeSnapshot }

// MonitorErrorEvent is published when a poll fails.
type MonitorErrorEvent struct {
	Query     string `json:"query" example:"svchost" doc:"Query name"`
	Error     string `json:"error" example:"tasklist: launch tasklist.exe: file not found" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Error timestamp"`
}

// Type returns the event type identifier for MonitorErrorEvent.
func (e MonitorErrorEvent) Type() uint32 { return TypeMonitorError }

// QueriesReloadedEvent is published after the queries file changed.
type QueriesReloadedEvent struct {
	Names     []string `json:"names" doc:"Saved query names after the reload"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Reload timestamp"`
}

// Type returns the event type identifier for QueriesReloadedEvent.
func (e QueriesReloadedEvent) Type() uint32 { return TypeQueriesReloaded }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
