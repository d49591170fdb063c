package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 1000

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
	// Writer receives text/json output. Nil means stdout plus the journal
	// when one is running. The list and watch commands pass os.Stderr so
	// results on stdout stay clean.
	Writer io.Writer `toml:"-"`
}

// LogCallback receives every entry that reaches the ring buffer.
type LogCallback func(entry LogEntry)

type moduleLogger struct {
	level  *slog.LevelVar
	logger *slog.Logger
}

type registry struct {
	mu          sync.RWMutex
	cfg         Config
	initialized bool
	root        slog.LevelVar
	modules     map[string]*moduleLogger
	buffer      *RingBuffer
	callback    LogCallback
	seq         atomic.Uint64
}

var std = &registry{modules: make(map[string]*moduleLogger)}

// Initialize applies config to the default logger and to every module
// logger, including those handed out earlier.
func Initialize(config Config) {
	std.initialize(config)
}

// GetLogger returns the logger for module. Loggers are cached, so a logger
// obtained before Initialize picks up the configured level and outputs.
func GetLogger(module string) *slog.Logger {
	return std.logger(module)
}

// GetBuffer returns the ring buffer of recent entries, or nil before
// Initialize.
func GetBuffer() *RingBuffer {
	std.mu.RLock()
	defer std.mu.RUnlock()
	return std.buffer
}

// SetLogCallback registers the function that publishes entries to SSE
// clients. Nil removes it.
func SetLogCallback(callback LogCallback) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.callback = callback
}

func (r *registry) initialize(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cfg = cfg
	r.initialized = true
	r.buffer = NewRingBuffer(defaultBufferSize)
	r.root.Set(levelOr(cfg.Level, slog.LevelInfo))

	for name, m := range r.modules {
		m.level.Set(r.levelFor(name))
		m.logger = slog.New(r.handler(m.level)).With("module", name)
	}
	slog.SetDefault(slog.New(r.handler(&r.root)))
}

func (r *registry) logger(module string) *slog.Logger {
	r.mu.RLock()
	m, ok := r.modules[module]
	r.mu.RUnlock()
	if ok {
		return m.logger
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[module]; ok {
		return m.logger
	}

	m = &moduleLogger{level: &slog.LevelVar{}}
	m.level.Set(r.levelFor(module))
	m.logger = slog.New(r.handler(m.level)).With("module", module)
	r.modules[module] = m
	return m.logger
}

// levelFor resolves a module level: module override, then global level,
// then info. Callers hold r.mu.
func (r *registry) levelFor(module string) slog.Level {
	if !r.initialized {
		return slog.LevelInfo
	}
	global := levelOr(r.cfg.Level, slog.LevelInfo)
	return levelOr(r.cfg.Modules[module], global)
}

// handler builds the output chain for one level. Callers hold r.mu.
func (r *registry) handler(level slog.Leveler) slog.Handler {
	cfg := r.cfg
	if !r.initialized {
		cfg = Config{Format: "text"}
	}

	var handlers []slog.Handler

	w, service := cfg.Writer, cfg.Writer == nil
	if service {
		w = os.Stdout
	}
	if !service || stdoutAvailable() {
		opts := &slog.HandlerOptions{Level: level}
		if cfg.Format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(w, opts))
		}
	}
	if service && r.initialized && IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, newBufferHandler(r, level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// record stores entry and forwards it to the callback.
func (r *registry) record(entry LogEntry) {
	entry.Seq = r.seq.Add(1)

	r.mu.RLock()
	buffer, callback := r.buffer, r.callback
	r.mu.RUnlock()

	if buffer != nil {
		buffer.Write(entry)
	}
	if callback != nil {
		callback(entry)
	}
}

// stdoutAvailable is false when stdout is closed or /dev/null, as under
// systemd with StandardOutput=null.
func stdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

func levelOr(s string, fallback slog.Level) slog.Level {
	if l, ok := parseLevel(s); ok {
		return l
	}
	return fallback
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
