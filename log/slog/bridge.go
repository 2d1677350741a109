package slog

import (
	"context"
	stdslog "log/slog"
	"slices"

	"github.com/unkn0wn-root/bouncer"
)

// Bridge returns a *slog.Logger whose records go to l, so that code written
// against log/slog shares the configured backend. Level filtering is left
// to l.
func Bridge(l bouncer.Logger) *stdslog.Logger {
	return stdslog.New(bridge{l: l})
}

type bridge struct {
	l      bouncer.Logger
	attrs  []stdslog.Attr
	prefix string
}

func (bridge) Enabled(context.Context, stdslog.Level) bool { return true }

func (b bridge) Handle(_ context.Context, r stdslog.Record) error {
	f := make(bouncer.Fields, len(b.attrs)+r.NumAttrs())
	for _, a := range b.attrs {
		f[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a stdslog.Attr) bool {
		f[b.prefix+a.Key] = a.Value.Resolve().Any()
		return true
	})
	switch {
	case r.Level >= stdslog.LevelError:
		b.l.Error(r.Message, f)
	case r.Level >= stdslog.LevelWarn:
		b.l.Warn(r.Message, f)
	case r.Level >= stdslog.LevelInfo:
		b.l.Info(r.Message, f)
	default:
		b.l.Debug(r.Message, f)
	}
	return nil
}

func (b bridge) WithAttrs(as []stdslog.Attr) stdslog.Handler {
	out := b
	out.attrs = slices.Clip(b.attrs)
	for _, a := range as {
		a.Key = b.prefix + a.Key
		out.attrs = append(out.attrs, a)
	}
	return out
}

func (b bridge) WithGroup(name string) stdslog.Handler {
	if name == "" {
		return b
	}
	out := b
	out.prefix = b.prefix + name + "."
	return out
}
