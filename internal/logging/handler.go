package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ContextProvider returns attributes computed at log time, e.g. the session.
type ContextProvider func() []slog.Attr

type attrsKey struct{}

// WithAttrs returns a context whose log records carry attrs, for example the
// file and hash of the map being scanned.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev := attrsFrom(ctx)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

func attrsFrom(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return attrs
}

// Handler sends every record to each sink enabled for its level, after
// adding the context attrs and the provider attrs. A failing sink does not
// stop the others.
type Handler struct {
	sinks    []slog.Handler
	provider ContextProvider
}

// NewHandler builds a Handler. provider may be nil and nil sinks are
// dropped.
func NewHandler(provider ContextProvider, sinks ...slog.Handler) *Handler {
	h := &Handler{provider: provider}
	for _, s := range sinks {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
	return h
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(attrsFrom(ctx)...)
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}

	var errs []error
	for _, s := range h.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (h *Handler) derive(fn func(slog.Handler) slog.Handler) *Handler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = fn(s)
	}
	return &Handler{sinks: sinks, provider: h.provider}
}
