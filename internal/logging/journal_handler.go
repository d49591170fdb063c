package logging

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry, for journalctl -t.
const SyslogIdentifier = "gotasklist"

// JournalHandler sends records to the systemd journal with attributes as
// upper-case journal fields (module becomes MODULE).
type JournalHandler struct {
	level slog.Leveler
	attrSet
}

// NewJournalHandler creates a journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{"SYSLOG_IDENTIFIER": SyslogIdentifier}
	h.each(r, func(a slog.Attr) {
		journalFields(fields, "", a)
	})
	return journal.Send(r.Message, journalPriority(r.Level), fields)
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JournalHandler{level: h.level, attrSet: h.withAttrs(attrs)}
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	return &JournalHandler{level: h.level, attrSet: h.withGroup(name)}
}

func journalPriority(l slog.Level) journal.Priority {
	switch {
	case l >= slog.LevelError:
		return journal.PriErr
	case l >= slog.LevelWarn:
		return journal.PriWarning
	case l >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func journalFields(dst map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := strings.ToUpper(a.Key)
	if prefix != "" {
		key = strings.ToUpper(prefix) + "_" + key
	}

	v := a.Value
	switch v.Kind() {
	case slog.KindGroup:
		for _, ga := range v.Group() {
			journalFields(dst, key, ga)
		}
	case slog.KindInt64:
		dst[key] = strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		dst[key] = strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		dst[key] = strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		dst[key] = strconv.FormatBool(v.Bool())
	case slog.KindTime:
		dst[key] = v.Time().Format(time.RFC3339Nano)
	default:
		dst[key] = v.String()
	}
}

// IsJournalAvailable reports whether journald is listening.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
