package tasklist

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/gotasklist/internal/process"
)

// Stream is a running tasklist.exe invocation whose output is parsed as it
// arrives. Callers must either range over All or call Close.
type Stream struct {
	ctx     context.Context
	schema  Schema
	running *process.Running
	reader  *bufio.Reader
	logger  *slog.Logger
	client  *Client
	start   time.Time

	consumed atomic.Bool
	closed   atomic.Bool
	once     sync.Once
}

// Stream validates opts and launches tasklist.exe. Configuration and launch
// errors are returned here, before any task is read.
func (c *Client) Stream(ctx context.Context, opts Options) (*Stream, error) {
	start := time.Now()

	plan, err := c.Plan(opts)
	if err != nil {
		c.observe(ModeStream, selectSchema(opts), 0, start, err)
		return nil, err
	}

	c.logger.Debug("Running tasklist", "mode", ModeStream, "args", plan.Redacted(), "schema", plan.Schema.String())

	running, err := c.newProcess(plan).Start(ctx)
	if err != nil {
		err = &LaunchError{Executable: c.executable, Err: err}
		c.observe(ModeStream, plan.Schema, 0, start, err)
		return nil, err
	}

	return &Stream{
		ctx:     ctx,
		schema:  plan.Schema,
		running: running,
		reader:  bufio.NewReader(running.Stdout),
		logger:  c.logger,
		client:  c,
		start:   start,
	}, nil
}

// Schema returns the header schema the stream is parsed with.
func (s *Stream) Schema() Schema {
	return s.schema
}

// All returns the tasks in output order. The sequence can be ranged over
// once; later calls yield ErrStreamConsumed. Breaking out of the loop closes
// the stream.
func (s *Stream) All() iter.Seq2[Task, error] {
	return func(yield func(Task, error) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			yield(Task{}, ErrStreamConsumed)
			return
		}

		var (
			count int
			err   error
		)
		defer func() {
			s.client.observe(ModeStream, s.schema, count, s.start, err)
		}()

		first, peekErr := s.reader.Peek(1)
		if peekErr != nil || first[0] != resultSentinel {
			if peekErr != nil && !errors.Is(peekErr, io.EOF) && !s.closed.Load() {
				s.logger.Debug("tasklist output ended before results", "error", peekErr)
			}
			s.Close()
			return
		}

		p := NewParser(s.reader, s.schema)
		for {
			task, nextErr := p.NextTask()
			if errors.Is(nextErr, io.EOF) {
				if ctxErr := s.ctx.Err(); ctxErr != nil && !s.closed.Load() {
					s.Close()
					err = ctxErr
					yield(Task{}, err)
					return
				}
				s.finish()
				return
			}
			if nextErr != nil {
				// Reads fail once the consumer has closed the pipe.
				if s.closed.Load() {
					return
				}
				s.Close()
				if ctxErr := s.ctx.Err(); ctxErr != nil {
					nextErr = ctxErr
				}
				err = nextErr
				yield(Task{}, err)
				return
			}

			count++
			if !yield(task, nil) {
				s.Close()
				return
			}
		}
	}
}

// Close stops reading and terminates tasklist.exe if it is still running.
// It is safe to call more than once and concurrently with All.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.running.Stop()
	})
	return nil
}

// finish waits for a process whose output reached EOF.
func (s *Stream) finish() {
	s.once.Do(func() {
		s.closed.Store(true)
		if code := s.running.Wait(); code != 0 {
			s.logger.Warn("tasklist exited with non-zero code", "exit_code", code)
		}
	})
}
