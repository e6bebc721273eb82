// Package logger adapts slog to the logging interfaces of third-party libraries.
package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Cron returns a cron.Logger that writes through l with a component attribute.
// cron's Info messages are demoted to debug since it logs every wake-up.
func Cron(l *slog.Logger) cron.Logger {
	if l == nil {
		return cron.DiscardLogger
	}
	return cronLogger{log: l.With("component", "cron")}
}

type cronLogger struct {
	log *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}
