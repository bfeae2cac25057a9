// Package logging configures the process-wide structured logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger writing JSON-formatted entries to stderr
// with the given level name ("debug", "info", "warn", "error"). An
// unrecognized level falls back to info.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// Component returns a child entry tagged with a "component" field, the
// convention used throughout this codebase to scope log lines to the
// subsystem that emitted them.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
