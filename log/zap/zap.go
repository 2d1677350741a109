// Package zap adapts go.uber.org/zap to bouncer.Logger.
package zap

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/bouncer"
)

var _ bouncer.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New builds a JSON (or, with pretty, console) logger at level
// ("debug", "info", "warn", "error"; case-insensitive).
func New(level string, pretty bool) (ZapLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return ZapLogger{}, fmt.Errorf("zap: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return ZapLogger{}, err
	}
	return ZapLogger{L: l}, nil
}

func (z ZapLogger) Debug(msg string, f bouncer.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f bouncer.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f bouncer.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f bouncer.Fields) { z.L.Error(msg, zf(f)...) }

// zf emits fields in key order; errors go through zap.NamedError.
func zf(f bouncer.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
