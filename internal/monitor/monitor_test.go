package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/gotasklist/internal/events"
	"github.com/smazurov/gotasklist/internal/metrics"
	"github.com/smazurov/gotasklist/internal/tasklist"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	mu      sync.Mutex
	results [][]tasklist.Task
	errs    []error
	calls   []tasklist.Options
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeLister) List(ctx context.Context, opts tasklist.Options) ([]tasklist.Task, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, opts)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if len(f.results) == 0 {
		return []tasklist.Task{}, nil
	}
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) take() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollBaselineEmitsNoTransitions(t *testing.T) {
	lister := &fakeLister{results: [][]tasklist.Task{{task("a.exe", 1, 100), task("b.exe", 2, 200)}}}
	bus := &recorder{}
	m := New(lister, bus, "baseline", tasklist.Options{}, WithLogger(quietLogger()))
	t.Cleanup(func() { metrics.DeleteMonitorMetrics("baseline") })

	snap, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Tasks, 2)
	require.Empty(t, snap.Started)
	require.Empty(t, snap.Exited)

	got := bus.take()
	require.Len(t, got, 1)
	ev, ok := got[0].(events.SnapshotEvent)
	require.True(t, ok, "got %T", got[0])
	require.Equal(t, "baseline", ev.Query)
	require.Equal(t, "default", ev.Schema)
	require.Equal(t, 2, ev.Count)
	require.Equal(t, int64(300), ev.MemUsage)

	status := m.Status()
	require.Equal(t, 2, status.Tracked)
	require.Empty(t, status.LastError)
	require.False(t, status.LastPoll.IsZero())
}

func TestPollPublishesTransitions(t *testing.T) {
	lister := &fakeLister{results: [][]tasklist.Task{
		{task("a.exe", 1, 100), task("b.exe", 2, 200)},
		{task("a.exe", 1, 100), task("c.exe", 3, 300)},
	}}
	bus := &recorder{}
	m := New(lister, bus, "transitions", tasklist.Options{}, WithLogger(quietLogger()))
	t.Cleanup(func() { metrics.DeleteMonitorMetrics("transitions") })

	_, err := m.Poll(context.Background())
	require.NoError(t, err)
	bus.take()

	snap, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{3}, pids(snap.Started))
	require.Equal(t, []int{2}, pids(snap.Exited))

	got := bus.take()
	require.Len(t, got, 3)

	started, ok := got[0].(events.TaskStartedEvent)
	require.True(t, ok, "got %T", got[0])
	require.Equal(t, "c.exe", started.Task.ImageName)
	require.NotNil(t, started.Task.MemUsage)
	require.Equal(t, int64(300), *started.Task.MemUsage)

	exited, ok := got[1].(events.TaskExitedEvent)
	require.True(t, ok, "got %T", got[1])
	require.Equal(t, 2, exited.Task.PID)

	snapshot, ok := got[2].(events.SnapshotEvent)
	require.True(t, ok, "got %T", got[2])
	require.Equal(t, 1, snapshot.Started)
	require.Equal(t, 1, snapshot.Exited)

	require.Equal(t, map[string]int64{"a.exe": 100, "c.exe": 300}, metrics.GetImageMemory("transitions"))
}

func TestPollLimitsImageGauges(t *testing.T) {
	lister := &fakeLister{results: [][]tasklist.Task{
		{task("small.exe", 1, 10), task("big.exe", 2, 1000), task("mid.exe", 3, 100)},
	}}
	m := New(lister, &recorder{}, "top", tasklist.Options{}, WithMaxImages(2), WithLogger(quietLogger()))
	t.Cleanup(func() { metrics.DeleteMonitorMetrics("top") })

	_, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"big.exe": 1000, "mid.exe": 100}, metrics.GetImageMemory("top"))
}

func TestPollError(t *testing.T) {
	boom := errors.New("boom")
	lister := &fakeLister{
		results: [][]tasklist.Task{{task("a.exe", 1, 0)}},
		errs:    []error{nil, boom},
	}
	bus := &recorder{}
	m := New(lister, bus, "failing", tasklist.Options{}, WithLogger(quietLogger()))
	t.Cleanup(func() { metrics.DeleteMonitorMetrics("failing") })

	_, err := m.Poll(context.Background())
	require.NoError(t, err)
	bus.take()

	_, err = m.Poll(context.Background())
	require.ErrorIs(t, err, boom)

	got := bus.take()
	require.Len(t, got, 1)
	ev, ok := got[0].(events.MonitorErrorEvent)
	require.True(t, ok, "got %T", got[0])
	require.Equal(t, "failing", ev.Query)
	require.Equal(t, "boom", ev.Error)

	status := m.Status()
	require.Equal(t, "boom", status.LastError)
	require.Equal(t, 1, status.Tracked)

	// The baseline survives a failed poll.
	snap, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Empty(t, snap.Started)
	require.Empty(t, m.Status().LastError)
}

func TestSetQueryResetsBaseline(t *testing.T) {
	lister := &fakeLister{results: [][]tasklist.Task{
		{task("a.exe", 1, 0)},
		{task("b.exe", 2, 0)},
	}}
	bus := &recorder{}
	m := New(lister, bus, "first", tasklist.Options{}, WithLogger(quietLogger()))
	t.Cleanup(func() {
		metrics.DeleteMonitorMetrics("first")
		metrics.DeleteMonitorMetrics("second")
	})

	_, err := m.Poll(context.Background())
	require.NoError(t, err)

	opts := tasklist.Options{Verbose: true}
	m.SetQuery("second", opts)
	require.Equal(t, "second", m.Status().Query)
	require.Zero(t, m.Status().Tracked)

	snap, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, "second", snap.Query)
	require.Empty(t, snap.Started)
	require.Empty(t, snap.Exited)
	require.Equal(t, opts, lister.calls[1])
}

// startBlockedPoll runs Poll in the background and returns once the
// lister has been entered.
func startBlockedPoll(t *testing.T, m *Monitor, lister *fakeLister) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() {
		_, err := m.Poll(context.Background())
		errc <- err
	}()
	select {
	case <-lister.entered:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for List")
	}
	return errc
}

func waitPoll(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for poll")
		return nil
	}
}

func TestPollDiscardsResultAfterQueryChange(t *testing.T) {
	lister := &fakeLister{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	bus := &recorder{}
	m := New(lister, bus, "old", tasklist.Options{}, WithLogger(quietLogger()))
	t.Cleanup(func() { metrics.DeleteMonitorMetrics("new") })

	errc := startBlockedPoll(t, m, lister)
	m.SetQuery("new", tasklist.Options{Apps: true})
	close(lister.block)

	require.ErrorIs(t, waitPoll(t, errc), ErrQueryChanged)
	require.Empty(t, bus.take())
}

func TestPollDiscardsResultAfterOptionsChange(t *testing.T) {
	svchost := task("svchost.exe", 1044, 1024)
	lister := &fakeLister{
		block:   make(chan struct{}),
		entered: make(chan struct{}, 4),
		results: [][]tasklist.Task{
			{task("notepad.exe", 4242, 2048)},
			{svchost},
			{svchost},
		},
	}
	bus := &recorder{}
	m := New(lister, bus, "q", tasklist.Options{}, WithLogger(quietLogger()))
	t.Cleanup(func() { metrics.DeleteMonitorMetrics("q") })

	errc := startBlockedPoll(t, m, lister)
	m.SetQuery("q", tasklist.Options{Services: true})
	close(lister.block)
	require.ErrorIs(t, waitPoll(t, errc), ErrQueryChanged)
	require.Equal(t, 0, m.Status().Tracked)

	// The first result under the new options is the baseline, so the
	// notepad.exe listing from the old options never produces an exit.
	_, err := m.Poll(context.Background())
	require.NoError(t, err)
	snap, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Empty(t, snap.Started)
	require.Empty(t, snap.Exited)
	for _, ev := range bus.take() {
		require.IsType(t, events.SnapshotEvent{}, ev)
	}
}

func TestStartPollsImmediatelyAndStops(t *testing.T) {
	lister := &fakeLister{results: [][]tasklist.Task{{task("a.exe", 1, 0)}}}
	m := New(lister, &recorder{}, "loop", tasklist.Options{},
		WithInterval(20*time.Millisecond), WithLogger(quietLogger()))
	t.Cleanup(func() { metrics.DeleteMonitorMetrics("loop") })

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return lister.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Stop())

	calls := lister.callCount()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, calls, lister.callCount())
}

func TestStopWithoutStart(t *testing.T) {
	m := New(&fakeLister{}, &recorder{}, "idle", tasklist.Options{})
	require.NoError(t, m.Stop())
}
