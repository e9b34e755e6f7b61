package logger

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler fans records out to several handlers. Records below min are
// dropped before any handler sees them.
type teeHandler struct {
	min      slog.Leveler
	handlers []slog.Handler
}

var _ slog.Handler = (*teeHandler)(nil)

func newTeeHandler(minLevel slog.Leveler, handlers ...slog.Handler) *teeHandler {
	return &teeHandler{min: minLevel, handlers: handlers}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < t.min.Level() {
		return false
	}

	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error

	for _, h := range t.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}

		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}

	return newTeeHandler(t.min, handlers...)
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		handlers[i] = h.WithGroup(name)
	}

	return newTeeHandler(t.min, handlers...)
}
