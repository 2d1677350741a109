// Package logrus adapts github.com/sirupsen/logrus to bouncer.Logger.
package logrus

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/bouncer"
)

var _ bouncer.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New builds a logger writing JSON (or, with pretty, text) to w.
func New(w io.Writer, level string, pretty bool) (LogrusLogger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return LogrusLogger{}, err
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	if pretty {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return LogrusLogger{E: logrus.NewEntry(l)}, nil
}

func (l LogrusLogger) Debug(msg string, f bouncer.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f bouncer.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f bouncer.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f bouncer.Fields) { l.with(f).Error(msg) }

// with maps an "err" field onto logrus' own error key.
func (l LogrusLogger) with(f bouncer.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			lf[logrus.ErrorKey] = err
			continue
		}
		lf[k] = v
	}
	return l.E.WithFields(lf)
}
