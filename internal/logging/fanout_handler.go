package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// multiHandler delivers each record to every sink that accepts its level,
// so console output and the per-run JSON file can use different levels.
type multiHandler struct {
	sinks []slog.Handler
}

func newMultiHandler(sinks ...slog.Handler) slog.Handler {
	sinks = slices.DeleteFunc(slices.Clone(sinks), func(h slog.Handler) bool { return h == nil })
	switch len(sinks) {
	case 0:
		return NoopHandler{}
	case 1:
		return sinks[0]
	}
	return &multiHandler{sinks: sinks}
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(h.sinks, func(s slog.Handler) bool { return s.Enabled(ctx, level) })
}

// Handle writes to every enabled sink even when an earlier one fails and
// returns the joined failures.
func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, record.Level) {
			errs = append(errs, sink.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, 0, len(h.sinks))
	for _, sink := range h.sinks {
		next = append(next, fn(sink))
	}
	return &multiHandler{sinks: next}
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

// TeeLogger returns a logger writing to base's handler and to extra.
func TeeLogger(base *slog.Logger, extra ...slog.Handler) *slog.Logger {
	if base == nil {
		return slog.New(newMultiHandler(extra...))
	}
	return slog.New(newMultiHandler(append([]slog.Handler{base.Handler()}, extra...)...))
}
