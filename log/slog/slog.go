// Package slog adapts log/slog to bouncer.Logger.
package slog

import (
	"context"
	"io"
	stdslog "log/slog"
	"strings"

	"github.com/unkn0wn-root/bouncer"
)

var _ bouncer.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

// New builds a JSON (or, with pretty, text) logger writing to w.
func New(w io.Writer, level string, pretty bool) (Logger, error) {
	var lvl stdslog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return Logger{}, err
	}
	opts := &stdslog.HandlerOptions{Level: lvl}
	var h stdslog.Handler = stdslog.NewJSONHandler(w, opts)
	if pretty {
		h = stdslog.NewTextHandler(w, opts)
	}
	return Logger{L: stdslog.New(h)}, nil
}

func (s Logger) Debug(msg string, f bouncer.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f bouncer.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f bouncer.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f bouncer.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(lvl stdslog.Level, msg string, f bouncer.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, lvl) {
		return
	}
	s.L.LogAttrs(ctx, lvl, msg, attrs(f)...)
}

func attrs(f bouncer.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, stdslog.String(k, err.Error()))
			continue
		}
		out = append(out, stdslog.Any(k, v))
	}
	return out
}
