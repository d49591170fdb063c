package logging

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// attrSet carries what a handler accumulated through WithAttrs and
// WithGroup. Attributes are nested under the groups open when they were
// added, so a later WithGroup does not requalify them.
type attrSet struct {
	attrs  []slog.Attr
	groups []string
}

func (s attrSet) withAttrs(attrs []slog.Attr) attrSet {
	return attrSet{attrs: slices.Concat(s.attrs, nest(s.groups, attrs)), groups: s.groups}
}

func (s attrSet) withGroup(name string) attrSet {
	if name == "" {
		return s
	}
	return attrSet{attrs: s.attrs, groups: append(slices.Clip(s.groups), name)}
}

// each visits the handler attributes, then the record attributes nested
// under the open groups.
func (s attrSet) each(r slog.Record, fn func(slog.Attr)) {
	for _, a := range s.attrs {
		fn(a)
	}
	rec := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		rec = append(rec, a)
		return true
	})
	for _, a := range nest(s.groups, rec) {
		fn(a)
	}
}

func nest(groups []string, attrs []slog.Attr) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	for i := len(groups) - 1; i >= 0; i-- {
		attrs = []slog.Attr{{Key: groups[i], Value: slog.GroupValue(attrs...)}}
	}
	return attrs
}

// bufferHandler turns records into LogEntry values for the ring buffer and
// the log callback.
type bufferHandler struct {
	reg   *registry
	level slog.Leveler
	attrSet
}

func newBufferHandler(reg *registry, level slog.Leveler) *bufferHandler {
	return &bufferHandler{reg: reg, level: level}
}

func (h *bufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *bufferHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp: r.Time,
		Level:     levelName(r.Level),
		Module:    "app",
		Message:   r.Message,
	}

	attrs := make(map[string]any)
	h.each(r, func(a slog.Attr) {
		if a.Key == "module" {
			entry.Module = a.Value.String()
			return
		}
		flatten(attrs, "", a)
	})
	if len(attrs) > 0 {
		entry.Attributes = attrs
	}

	h.reg.record(entry)
	return nil
}

func (h *bufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &bufferHandler{reg: h.reg, level: h.level, attrSet: h.withAttrs(attrs)}
}

func (h *bufferHandler) WithGroup(name string) slog.Handler {
	return &bufferHandler{reg: h.reg, level: h.level, attrSet: h.withGroup(name)}
}

// flatten stores a under a dotted key. Errors become their message so the
// entry stays JSON friendly.
func flatten(dst map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		for _, ga := range a.Value.Group() {
			flatten(dst, key, ga)
		}
	case slog.KindTime:
		dst[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		dst[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			dst[key] = err.Error()
		} else {
			dst[key] = a.Value.Any()
		}
	default:
		dst[key] = a.Value.Any()
	}
}
