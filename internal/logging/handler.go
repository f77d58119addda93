package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ViewState describes what the viewer currently shows.
type ViewState interface {
	LogAttrs() []slog.Attr
}

// ViewFunc adapts a function to ViewState.
type ViewFunc func() []slog.Attr

func (f ViewFunc) LogAttrs() []slog.Attr { return f() }

// viewKey groups the view attributes on every record.
const viewKey = "view"

// viewHandler adds the current view, grouped under viewKey, to each record
// it passes on.
type viewHandler struct {
	next slog.Handler
	view ViewState
}

func (h viewHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h viewHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := h.view.LogAttrs(); len(attrs) > 0 {
		r.AddAttrs(slog.Attr{Key: viewKey, Value: slog.GroupValue(attrs...)})
	}
	return h.next.Handle(ctx, r)
}

func (h viewHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return viewHandler{next: h.next.WithAttrs(attrs), view: h.view}
}

func (h viewHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return viewHandler{next: h.next.WithGroup(name), view: h.view}
}

// outputs delivers each record to every sink enabled for its level. A sink
// that fails does not keep the record from the others.
type outputs []slog.Handler

func (o outputs) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range o {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (o outputs) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range o {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o outputs) WithAttrs(attrs []slog.Attr) slog.Handler {
	return o.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (o outputs) WithGroup(name string) slog.Handler {
	if name == "" {
		return o
	}
	return o.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (o outputs) each(fn func(slog.Handler) slog.Handler) outputs {
	out := make(outputs, len(o))
	for i, h := range o {
		out[i] = fn(h)
	}
	return out
}
