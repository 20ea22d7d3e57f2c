// Package logger builds the charmbracelet loggers handed to every component.
// There is no package-level logger: callers create one at startup and pass it down.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Options controls how a root logger is built
type Options struct {
	// Level is one of debug, info, warn, error, fatal. Empty falls back to LOG_LEVEL, then info.
	Level string
	// FileLogging additionally writes to $XDG_STATE_HOME/popkeys/popkeys.log
	FileLogging bool
	// Output defaults to stderr
	Output io.Writer
}

// New returns a root logger plus a closer for the optional log file
func New(opts Options) (*log.Logger, func() error, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	closer := func() error { return nil }
	if opts.FileLogging {
		path, err := LogFilePath()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve log file path: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		out = io.MultiWriter(out, f)
		closer = f.Close
	}

	l := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Prefix:          "popkeys",
	})
	l.SetLevel(ParseLevel(resolveLevel(opts.Level)))
	return l, closer, nil
}

// Discard returns a logger that drops everything, for tests and quiet commands
func Discard() *log.Logger {
	l := log.New(io.Discard)
	l.SetLevel(log.FatalLevel)
	return l
}

// ParseLevel maps a level name to a log level, defaulting to info
func ParseLevel(level string) log.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return log.DebugLevel
	case "INFO":
		return log.InfoLevel
	case "WARN", "WARNING":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	case "FATAL":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// LogFilePath returns the log file location, creating its directory
func LogFilePath() (string, error) {
	return xdg.StateFile(filepath.Join("popkeys", "popkeys.log"))
}

func resolveLevel(level string) string {
	if level != "" {
		return level
	}
	return os.Getenv("LOG_LEVEL")
}
