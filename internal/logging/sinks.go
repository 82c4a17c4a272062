package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

const redactedValue = "[redacted]"

// credentialKeys name attributes whose values never reach a sink or the
// stream hub.
var credentialKeys = map[string]struct{}{
	"token":         {},
	"api_token":     {},
	"authorization": {},
	"jwt":           {},
	"password":      {},
	"secret":        {},
}

func redact(attr slog.Attr) slog.Attr {
	if _, ok := credentialKeys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, redactedValue)
	}
	if attr.Value.Kind() == slog.KindGroup {
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(redactAll(attr.Value.Group())...)}
	}
	return attr
}

func redactAll(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		out[i] = redact(attr)
	}
	return out
}

// newJSONSink writes the line format internal/logs reads back: UTC
// timestamps under "time", lowercase levels, file:line sources.
func newJSONSink(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				if len(groups) == 0 && attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
				}
			case slog.LevelKey:
				if len(groups) == 0 {
					attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
				}
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	}
	return slog.NewJSONHandler(w, &opts)
}

// stationHandler feeds one record to the console, the rotated log file and
// the live stream hub. Sinks keep their own levels; the hub sees whatever
// reached Handle.
type stationHandler struct {
	sinks []slog.Handler
	hub   *StreamHub
	attrs []slog.Attr
}

func newStationHandler(hub *StreamHub, sinks ...slog.Handler) slog.Handler {
	live := make([]slog.Handler, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			live = append(live, sink)
		}
	}
	if len(live) == 0 {
		return NoopHandler{}
	}
	return &stationHandler{sinks: live, hub: hub}
}

func (h *stationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *stationHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		clean.AddAttrs(redact(attr))
		return true
	})
	if h.hub != nil {
		h.hub.Publish(eventFromRecord(clean, h.attrs))
	}

	var firstErr error
	for _, sink := range h.sinks {
		if !sink.Enabled(ctx, clean.Level) {
			continue
		}
		if err := sink.Handle(ctx, clean.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *stationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	attrs = redactAll(attrs)
	next := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		next[i] = sink.WithAttrs(attrs)
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &stationHandler{sinks: next, hub: h.hub, attrs: merged}
}

func (h *stationHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		next[i] = sink.WithGroup(name)
	}
	return &stationHandler{sinks: next, hub: h.hub, attrs: h.attrs}
}
