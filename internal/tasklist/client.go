package tasklist

import (
	"bytes"
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/smazurov/gotasklist/internal/logging"
	"github.com/smazurov/gotasklist/internal/process"
)

// DefaultExecutable is resolved through PATH.
const DefaultExecutable = "tasklist.exe"

// resultSentinel starts every CSV record. Output that begins with anything
// else is tasklist.exe's "no tasks" message.
const resultSentinel = '"'

// Mode names the consumption strategy of an invocation.
type Mode string

// Consumption modes.
const (
	ModeList   Mode = "list"
	ModeStream Mode = "stream"
)

// Observer is notified after every invocation. err is nil on success,
// including the empty "no tasks" result.
type Observer interface {
	ObserveInvocation(mode Mode, schema Schema, tasks int, elapsed time.Duration, err error)
}

// Client runs tasklist.exe.
type Client struct {
	executable string
	goos       string
	logger     *slog.Logger
	observer   Observer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithExecutable overrides the tasklist.exe path.
func WithExecutable(path string) ClientOption {
	return func(c *Client) {
		c.executable = path
	}
}

// WithPlatform overrides the GOOS used for the platform check.
func WithPlatform(goos string) ClientOption {
	return func(c *Client) {
		c.goos = goos
	}
}

// WithLogger sets the logger. Defaults to the "tasklist" module logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithObserver registers an invocation observer.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a client for the current platform.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		executable: DefaultExecutable,
		goos:       runtime.GOOS,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.GetLogger("tasklist")
	}
	return c
}

// Plan validates opts for this client's platform.
func (c *Client) Plan(opts Options) (*Plan, error) {
	return opts.Plan(c.goos)
}

// List runs tasklist.exe, waits for it to exit and returns every task. No
// matching tasks is an empty slice, not an error.
func (c *Client) List(ctx context.Context, opts Options) ([]Task, error) {
	start := time.Now()

	plan, err := c.Plan(opts)
	if err != nil {
		c.observe(ModeList, selectSchema(opts), 0, start, err)
		return nil, err
	}

	c.logger.Debug("Running tasklist", "mode", ModeList, "args", plan.Redacted(), "schema", plan.Schema.String())

	res, err := c.newProcess(plan).Output(ctx)
	if err != nil {
		if ctx.Err() == nil {
			err = &LaunchError{Executable: c.executable, Err: err}
		}
		c.observe(ModeList, plan.Schema, 0, start, err)
		return nil, err
	}

	tasks, err := c.parseOutput(res, plan.Schema)
	c.observe(ModeList, plan.Schema, len(tasks), start, err)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) parseOutput(res *process.Result, schema Schema) ([]Task, error) {
	if !hasResults(res.Stdout) {
		if res.ExitCode != 0 {
			c.logger.Warn("tasklist exited without results",
				"exit_code", res.ExitCode, "stderr", strings.Join(res.Stderr, "; "))
		} else {
			c.logger.Debug("No matching tasks")
		}
		return []Task{}, nil
	}

	if res.ExitCode != 0 {
		c.logger.Warn("tasklist exited with non-zero code, parsing output anyway", "exit_code", res.ExitCode)
	}

	return ParseAll(bytes.NewReader(res.Stdout), schema)
}

func (c *Client) newProcess(plan *Plan) *process.Process {
	p := process.NewProcess("tasklist", c.executable, plan.Args, c.logger)
	p.SetLogParser(c.logger.With("source", "tasklist.exe"), ParseLogLevel)
	return p
}

func (c *Client) observe(mode Mode, schema Schema, tasks int, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Debug("tasklist invocation failed", "mode", mode, "error", err, "elapsed", elapsed)
	} else {
		c.logger.Debug("tasklist invocation finished", "mode", mode, "tasks", tasks, "elapsed", elapsed)
	}
	if c.observer != nil {
		c.observer.ObserveInvocation(mode, schema, tasks, elapsed, err)
	}
}

func hasResults(out []byte) bool {
	return len(out) > 0 && out[0] == resultSentinel
}
