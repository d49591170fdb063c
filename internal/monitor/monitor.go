// Package monitor polls tasklist on an interval and publishes the
// difference between consecutive snapshots.
package monitor

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/smazurov/gotasklist/internal/api/models"
	"github.com/smazurov/gotasklist/internal/events"
	"github.com/smazurov/gotasklist/internal/logging"
	"github.com/smazurov/gotasklist/internal/metrics"
	"github.com/smazurov/gotasklist/internal/tasklist"
)

// ErrQueryChanged is returned by Poll when SetQuery replaced the query or
// its options while tasklist was running. The result is discarded.
var ErrQueryChanged = errors.New("monitor: query changed during poll")

// Lister is satisfied by *tasklist.Client.
type Lister interface {
	List(ctx context.Context, opts tasklist.Options) ([]tasklist.Task, error)
}

// Publisher is satisfied by *events.Bus.
type Publisher interface {
	Publish(ev events.Event)
}

// Status describes the most recent poll.
type Status struct {
	Query     string
	Interval  time.Duration
	Tracked   int
	LastPoll  time.Time
	LastError string
}

// Snapshot is the result of one poll.
type Snapshot struct {
	Query    string
	Tasks    []tasklist.Task
	Started  []tasklist.Task
	Exited   []tasklist.Task
	Duration time.Duration
	At       time.Time
}

// Monitor polls one query at a time.
type Monitor struct {
	lister    Lister
	bus       Publisher
	logger    logging.Logger
	interval  time.Duration
	maxImages int

	mu     sync.Mutex
	query  string
	opts   tasklist.Options
	gen    uint64
	prev   []tasklist.Task
	primed bool
	status Status

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the poll interval. Default is 5s.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMaxImages bounds how many image names get a memory gauge. Default is 50.
func WithMaxImages(n int) Option {
	return func(m *Monitor) {
		m.maxImages = n
	}
}

// WithLogger overrides the "monitor" module logger.
func WithLogger(logger logging.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// New creates a monitor for the named query.
func New(lister Lister, bus Publisher, query string, opts tasklist.Options, options ...Option) *Monitor {
	m := &Monitor{
		lister:    lister,
		bus:       bus,
		logger:    logging.GetLogger("monitor"),
		interval:  5 * time.Second,
		maxImages: 50,
		query:     query,
		opts:      opts,
	}
	for _, opt := range options {
		opt(m)
	}
	m.status = Status{Query: query, Interval: m.interval}
	return m
}

// SetQuery switches to another query. The next poll becomes the new
// baseline and emits no start or exit events.
func (m *Monitor) SetQuery(query string, opts tasklist.Options) {
	m.mu.Lock()
	if query == m.query && reflect.DeepEqual(opts, m.opts) {
		m.mu.Unlock()
		return
	}
	old := m.query
	m.query = query
	m.opts = opts
	m.gen++
	m.prev = nil
	m.primed = false
	m.status = Status{Query: query, Interval: m.interval}
	m.mu.Unlock()

	metrics.DeleteMonitorMetrics(old)
	m.logger.Info("Monitor query changed", "from", old, "to", query)
}

// Status returns the state after the latest poll.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Start polls immediately and then on every interval until ctx is done or
// Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx)
	return nil
}

// Stop stops polling and waits for an in-flight poll to finish.
func (m *Monitor) Stop() error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	<-m.done
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	m.logger.Info("Starting task monitor", "query", m.Status().Query, "interval", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.pollAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("Task monitor stopped")
			return
		case <-ticker.C:
			m.pollAndLog(ctx)
		}
	}
}

func (m *Monitor) pollAndLog(ctx context.Context) {
	if _, err := m.Poll(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, ErrQueryChanged) {
		m.logger.Warn("Poll failed", "error", err)
	}
}

// Poll takes one snapshot, diffs it against the previous one and publishes
// the resulting events.
func (m *Monitor) Poll(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	query, opts, gen := m.query, m.opts, m.gen
	m.mu.Unlock()

	start := time.Now()
	tasks, err := m.lister.List(ctx, opts)
	at := time.Now()
	ts := at.Format(time.RFC3339)

	if err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.status.LastPoll = at
			m.status.LastError = err.Error()
		}
		m.mu.Unlock()
		m.bus.Publish(events.MonitorErrorEvent{Query: query, Error: err.Error(), Timestamp: ts})
		return Snapshot{}, err
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return Snapshot{}, ErrQueryChanged
	}
	snap := Snapshot{Query: query, Tasks: tasks, Duration: at.Sub(start), At: at}
	if m.primed {
		snap.Started, snap.Exited = Diff(m.prev, tasks)
	}
	m.prev = tasks
	m.primed = true
	m.status.Tracked = len(tasks)
	m.status.LastPoll = at
	m.status.LastError = ""
	m.mu.Unlock()

	m.publish(snap, ts)
	return snap, nil
}

func (m *Monitor) publish(snap Snapshot, ts string) {
	for _, t := range snap.Started {
		m.bus.Publish(events.TaskStartedEvent{Query: snap.Query, Task: models.NewTaskData(t), Timestamp: ts})
	}
	for _, t := range snap.Exited {
		m.bus.Publish(events.TaskExitedEvent{Query: snap.Query, Task: models.NewTaskData(t), Timestamp: ts})
	}

	usage := MemoryByImage(snap.Tasks)
	var total int64
	for _, bytes := range usage {
		total += bytes
	}

	metrics.RecordSnapshot(snap.Query, len(snap.Tasks), len(snap.Started), len(snap.Exited))
	if usage != nil {
		top := make(map[string]int64, m.maxImages)
		for _, image := range TopByMemory(usage, m.maxImages) {
			top[image] = usage[image]
		}
		metrics.SetImageMemory(snap.Query, top)
	}

	schema := tasklist.SchemaDefault
	if len(snap.Tasks) > 0 {
		schema = snap.Tasks[0].Schema
	}
	m.bus.Publish(events.SnapshotEvent{
		Query:     snap.Query,
		Schema:    schema.String(),
		Count:     len(snap.Tasks),
		Started:   len(snap.Started),
		Exited:    len(snap.Exited),
		MemUsage:  total,
		Duration:  snap.Duration.Round(time.Millisecond).String(),
		Timestamp: ts,
	})

	if len(snap.Started) > 0 || len(snap.Exited) > 0 {
		m.logger.Debug("Snapshot changed", "query", snap.Query,
			"tasks", len(snap.Tasks), "started", len(snap.Started), "exited", len(snap.Exited))
	}
}
