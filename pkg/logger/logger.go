// Package logger adapts slog to the logger interfaces of third-party libraries.
package logger

import (
	"log/slog"
)

// Cron satisfies robfig/cron's Logger on top of slog. Cron's chatty
// scheduling messages go to debug; errors stay errors.
type Cron struct {
	log *slog.Logger
}

// NewCron wraps log, tagging records with the scheduler component.
func NewCron(log *slog.Logger) *Cron {
	if log == nil {
		log = slog.Default()
	}
	return &Cron{log: log.With("component", "cron")}
}

// Info logs routine cron activity.
func (c *Cron) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

// Error logs a cron failure, such as a recovered job panic.
func (c *Cron) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{"error", err}, keysAndValues...)
	c.log.Error(msg, args...)
}
