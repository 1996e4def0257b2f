// Package logging sets up impalab's one process-wide logger.
// cmd/impalab builds it once and passes it explicitly to each
// component; the root package's atexit registry is the other piece of
// package-level mutable state in this program.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Level is a coarse verbosity level, the "RUST_LOG-style" control
// spec.md §6 calls for.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the leveled wrapper impalab passes around instead of the
// bare *log.Logger the teacher uses directly; it adds level filtering
// and TTY-gated prefixes on top of the same stdlib logger.
type Logger struct {
	out    *log.Logger
	level  Level
	color  bool
	closer io.Closer // non-nil when logging to a file we opened
}

// New constructs a Logger honoring IMPALAB_LOG (level) and
// IMPALAB_LOG_FILE (destination path; empty means stderr).
func New() (*Logger, error) {
	level := parseLevel(os.Getenv("IMPALAB_LOG"))

	var w io.Writer = os.Stderr
	var closer io.Closer
	color := isatty.IsTerminal(os.Stderr.Fd())

	if path := os.Getenv("IMPALAB_LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		w = f
		closer = f
		color = false
	}

	return &Logger{
		out:    log.New(w, "", log.LstdFlags),
		level:  level,
		color:  color,
		closer: closer,
	}, nil
}

// Close releases the log file handle, if one was opened. Registered
// via impalab.RegisterAtExit by cmd/impalab.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *Logger) prefix(level Level, tag string) string {
	if !l.color {
		return tag + " "
	}
	var code string
	switch level {
	case LevelDebug:
		code = "\x1b[2m" // dim
	case LevelWarn:
		code = "\x1b[33m" // yellow
	case LevelError:
		code = "\x1b[31m" // red
	default:
		code = ""
	}
	if code == "" {
		return tag + " "
	}
	return code + tag + "\x1b[0m "
}

func (l *Logger) log(level Level, tag, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.out.Printf(l.prefix(level, tag)+format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, "DEBUG", format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(LevelInfo, "INFO", format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, "WARN", format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, "ERROR", format, args...) }
