package logging

import (
	"context"
	"log/slog"
	"time"
)

// Poster is the subset of the Fluent client used for forwarding.
type Poster interface {
	Post(tag string, message any) error
}

// FluentHandler forwards records to a Fluent forwarder as flat maps.
type FluentHandler struct {
	poster Poster
	tag    string
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
}

// NewFluentHandler builds a handler posting records under tag.
func NewFluentHandler(poster Poster, tag string, level slog.Leveler) *FluentHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &FluentHandler{poster: poster, tag: tag, level: level}
}

func (h *FluentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.poster != nil && level >= h.level.Level()
}

func (h *FluentHandler) Handle(_ context.Context, record slog.Record) error {
	if h.poster == nil {
		return nil
	}
	message := map[string]any{
		"time":  record.Time.UTC().Format(time.RFC3339Nano),
		"level": record.Level.String(),
		"msg":   record.Message,
	}
	for _, attr := range h.attrs {
		addAttr(message, "", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		addAttr(message, h.group, attr)
		return true
	})
	return h.poster.Post(h.tag, message)
}

func (h *FluentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, attr := range attrs {
		if h.group != "" {
			attr.Key = h.group + "." + attr.Key
		}
		next.attrs = append(next.attrs, attr)
	}
	return &next
}

func (h *FluentHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group == "" {
		next.group = name
	} else {
		next.group = h.group + "." + name
	}
	return &next
}

func addAttr(dst map[string]any, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			addAttr(dst, key, child)
		}
		return
	}
	switch attr.Value.Kind() {
	case slog.KindAny:
		if err, ok := attr.Value.Any().(error); ok {
			dst[key] = err.Error()
			return
		}
		dst[key] = attr.Value.Any()
	case slog.KindTime:
		dst[key] = attr.Value.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindDuration:
		dst[key] = attr.Value.Duration().String()
	default:
		dst[key] = attr.Value.Any()
	}
}
