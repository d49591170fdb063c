package cmd

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/gotasklist/internal/api/models"
	"github.com/smazurov/gotasklist/internal/events"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestEventPrinter(t *testing.T) {
	bus := events.New()
	var out syncBuffer
	p := &eventPrinter{w: &out}
	for _, unsub := range p.subscribe(bus) {
		defer unsub()
	}

	bus.Publish(events.TaskStartedEvent{Task: models.TaskData{ImageName: "notepad.exe", PID: 4242}})
	require.Eventually(t, func() bool { return out.String() != "" }, time.Second, 5*time.Millisecond)

	bus.Publish(events.TaskExitedEvent{Task: models.TaskData{ImageName: "notepad.exe", PID: 4242}})
	require.Eventually(t, func() bool { return strings.Count(out.String(), "\n") == 2 }, time.Second, 5*time.Millisecond)

	require.Equal(t, "+   4242 notepad.exe\n-   4242 notepad.exe\n", out.String())
}

func TestEventPrinterJSON(t *testing.T) {
	bus := events.New()
	var out syncBuffer
	p := &eventPrinter{w: &out, json: true}
	for _, unsub := range p.subscribe(bus) {
		defer unsub()
	}

	bus.Publish(events.MonitorErrorEvent{Query: "all", Error: "boom", Timestamp: "2025-01-27T10:30:00Z"})
	require.Eventually(t, func() bool { return out.String() != "" }, time.Second, 5*time.Millisecond)
	require.JSONEq(t, `{"query":"all","error":"boom","timestamp":"2025-01-27T10:30:00Z"}`, out.String())
}
