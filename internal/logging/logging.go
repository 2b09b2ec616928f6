// Package logging provides the leveled-logger factory shared by every
// subsystem, following the same pion/logging.LoggerFactory convention the
// rest of the stack is built on.
package logging

import (
	"os"

	"github.com/pion/logging"
)

// NewFactory returns a logger factory writing to stderr at the given
// minimum level. Subsystems each call NewLogger(scope) to get their own
// prefixed logger.
func NewFactory(level logging.LogLevel) *logging.DefaultLoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	f.Writer = os.Stderr
	f.DefaultLogLevel = level
	return f
}

// ParseLevel maps the config-file level strings to pion/logging levels,
// defaulting to Info on an unrecognized value.
func ParseLevel(s string) logging.LogLevel {
	switch s {
	case "trace":
		return logging.LogLevelTrace
	case "debug":
		return logging.LogLevelDebug
	case "warn", "warning":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
