package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"sync"
	"time"

	"github.com/smazurov/gotasklist/internal/logging"
)

// LogParser parses a stderr line and returns the log level and message.
type LogParser func(line string) (level, msg string)

// Process describes one invocation of an external executable.
type Process struct {
	id            string
	name          string
	args          []string
	logger        logging.Logger
	processLogger logging.Logger // logger for process stderr (nil = use logger)
	logParser     LogParser      // parses stderr for log level (nil = no parsing)
	killTimeout   time.Duration  // how long Wait may block on pipes after the process is killed
}

// NewProcess creates a new process description. Nothing is started.
func NewProcess(id, name string, args []string, logger logging.Logger) *Process {
	return &Process{
		id:          id,
		name:        name,
		args:        args,
		logger:      logger,
		killTimeout: 5 * time.Second,
	}
}

// GetCommand returns the executable followed by its arguments.
func (p *Process) GetCommand() []string {
	return append([]string{p.name}, p.args...)
}

// SetLogParser sets a custom logger and log parser for stderr lines.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// Result is the outcome of a completed process.
type Result struct {
	Stdout   []byte
	Stderr   []string
	ExitCode int
}

// Output runs the process to completion and captures stdout. The error is
// non-nil only if the process could not be started or ctx was cancelled; a
// non-zero exit is reported through Result.ExitCode.
func (p *Process) Output(ctx context.Context) (*Result, error) {
	r, err := p.Start(ctx)
	if err != nil {
		return nil, err
	}

	var stdout bytes.Buffer
	if _, copyErr := io.Copy(&stdout, r.Stdout); copyErr != nil {
		p.logger.Warn("Error reading output", "source", "stdout", "error", copyErr)
	}
	exitCode := r.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return &Result{Stdout: stdout.Bytes(), Stderr: r.StderrLines(), ExitCode: exitCode}, nil
}

// Start launches the process and returns a handle whose Stdout is read
// incrementally by the caller.
func (p *Process) Start(ctx context.Context) (*Running, error) {
	if p.name == "" {
		return nil, fmt.Errorf("empty command")
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, p.name, p.args...)
	configureCmd(cmd)
	cmd.WaitDelay = p.killTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		p.logger.Error("Failed to create stdout pipe", "error", err)
		return nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		p.logger.Error("Failed to create stderr pipe", "error", err)
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		cancel()
		p.logger.Error("Failed to start process", "error", err, "command", p.name)
		return nil, err
	}

	p.logger.Debug("Process started", "id", p.id, "pid", cmd.Process.Pid, "command", p.name)

	r := &Running{
		Stdout:     stdout,
		PID:        cmd.Process.Pid,
		cmd:        cmd,
		cancel:     cancel,
		stderrDone: make(chan struct{}),
		proc:       p,
	}
	go func() {
		defer close(r.stderrDone)
		p.streamOutput(stderr, r)
	}()

	return r, nil
}

// Running is a started process.
type Running struct {
	// Stdout is the live standard output of the process.
	Stdout io.Reader
	PID    int

	cmd        *exec.Cmd
	cancel     context.CancelFunc
	stderrDone chan struct{}
	proc       *Process

	stderrMu sync.Mutex
	stderr   []string

	once     sync.Once
	exitCode int
}

// Wait waits for stderr to drain and the process to exit. Stdout must have
// been read to EOF first. Returns the exit code.
func (r *Running) Wait() int {
	r.once.Do(func() {
		<-r.stderrDone
		r.exitCode = r.proc.handleProcessExit(r.cmd.Wait())
		r.cancel()
	})
	return r.exitCode
}

// Stop kills the process if it is still running and releases its pipes.
// Data written after Stop is discarded. Safe to call more than once and
// after Wait.
func (r *Running) Stop() int {
	r.once.Do(func() {
		r.cancel()
		r.exitCode = exitCodeFromError(r.cmd.Wait())
		<-r.stderrDone
		r.proc.logger.Debug("Process stopped", "id", r.proc.id, "pid", r.PID, "exit_code", r.exitCode)
	})
	return r.exitCode
}

// StderrLines returns the stderr lines read so far.
func (r *Running) StderrLines() []string {
	r.stderrMu.Lock()
	defer r.stderrMu.Unlock()
	return append([]string(nil), r.stderr...)
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// handleProcessExit extracts exit code from process error and logs non-ExitError errors.
func (p *Process) handleProcessExit(processErr error) int {
	exitCode := exitCodeFromError(processErr)
	if processErr != nil && exitCode == 1 {
		var exitErr *exec.ExitError
		if !errors.As(processErr, &exitErr) {
			p.logger.Error("Process exited with error", "error", processErr)
		}
	}
	p.logger.Debug("Process exited", "id", p.id, "exit_code", exitCode)
	return exitCode
}

// streamOutput logs stderr lines through the configured parser and keeps
// them on the running handle.
func (p *Process) streamOutput(reader io.Reader, r *Running) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		r.stderrMu.Lock()
		r.stderr = append(r.stderr, line)
		r.stderrMu.Unlock()

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	// Reads after Stop fail with a closed pipe; that is expected.
	if err := scanner.Err(); err != nil && !errors.Is(err, fs.ErrClosed) {
		p.logger.Debug("Error reading output", "source", "stderr", "error", err)
	}
}
