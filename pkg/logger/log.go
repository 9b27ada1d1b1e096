// Package logger provides a small, dependency-light leveled logger used by
// every component of the coordinator, agent and worker processes.
//
// Loggers are acquired per-component with Get("Name") and are safe to store
// at package scope. Output is colorized when attached to a terminal and
// includes a timestamp, which matters here because subprocess supervisors
// and heartbeat sweeps log on independent goroutines and operators need to
// be able to reconstruct ordering after the fact.
package logger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// LogStatus describes the intent of a single log line. Several statuses
// share a LogLevel tier (e.g. NEW/REMOVE/STOP are all "important") so that
// verbosity can be tuned coarsely while call sites stay descriptive.
type LogStatus int

const (
	VERBOSE LogStatus = iota
	DEBUG
	INFO
	SUCCESS
	NEW
	REMOVE
	STOP
	WARNING
	ERROR
	FATAL
)

type LogLevel int

const (
	verbose LogLevel = iota
	debug
	info
	important
	warning
	err
)

// Level maps a LogStatus to the coarser LogLevel tier used for filtering.
func (s LogStatus) Level() LogLevel {
	switch s {
	case VERBOSE:
		return verbose
	case DEBUG:
		return debug
	case INFO:
		return info
	case SUCCESS, NEW, REMOVE, STOP:
		return important
	case WARNING:
		return warning
	case ERROR, FATAL:
		return err
	default:
		return err
	}
}

func (s LogStatus) String() string {
	return [...]string{"V", "D", "I", "OK", "+", "-", "X", "!", "!!", "PANIC"}[s]
}

func (s LogStatus) Color() *color.Color {
	return [...]*color.Color{
		color.New(color.FgWhite, color.Faint, color.Italic),
		color.New(color.FgWhite, color.Faint, color.Italic),
		color.New(color.FgWhite),
		color.New(color.FgHiGreen),
		color.New(color.FgGreen, color.Italic),
		color.New(color.FgYellow, color.Italic),
		color.New(color.FgHiYellow),
		color.New(color.FgYellow, color.Underline),
		color.New(color.FgHiRed, color.Bold),
		color.New(color.FgHiRed, color.Bold, color.Underline),
	}[s]
}

// Logger is the interface every component acquires via Get. The Emit form
// carries an explicit status; the Xf helpers are convenience wrappers.
type Logger interface {
	Emit(status LogStatus, pattern string, args ...any)
	Verbosef(pattern string, args ...any)
	Debugf(pattern string, args ...any)
	Infof(pattern string, args ...any)
	Warnf(pattern string, args ...any)
	Errorf(pattern string, args ...any)
	Fatalf(pattern string, args ...any)
}

type componentLogger struct {
	name string
}

func (l *componentLogger) Emit(status LogStatus, message string, args ...any) {
	manager.emit(status, l.name, message, args...)
}

func (l *componentLogger) Verbosef(m string, v ...any) { l.Emit(VERBOSE, m, v...) }
func (l *componentLogger) Debugf(m string, v ...any)   { l.Emit(DEBUG, m, v...) }
func (l *componentLogger) Infof(m string, v ...any)    { l.Emit(INFO, m, v...) }
func (l *componentLogger) Warnf(m string, v ...any)    { l.Emit(WARNING, m, v...) }
func (l *componentLogger) Errorf(m string, v ...any)   { l.Emit(ERROR, m, v...) }
func (l *componentLogger) Fatalf(m string, v ...any)   { l.Emit(FATAL, m, v...) }

var manager = &registry{minLevel: info}

// registry owns the shared column alignment and minimum level; it is the
// only piece of global state and exists solely so every component logger
// lines up in the same column regardless of name length.
type registry struct {
	mu       sync.Mutex
	offset   int
	minLevel LogLevel
}

func (r *registry) emit(status LogStatus, name, message string, args ...any) {
	if status.Level() < r.minLevel {
		return
	}

	r.mu.Lock()
	if len(name) > r.offset {
		r.offset = len(name)
	}
	padding := strings.Repeat(" ", r.offset-len(name))
	r.mu.Unlock()

	ts := time.Now().Format("15:04:05.000")
	line := fmt.Sprintf("%s [%s]%s (%s) %s\n", ts, name, padding, status, fmt.Sprintf(message, args...))
	_, _ = status.Color().Print(line)
}

func (r *registry) setMinLevel(level LogLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minLevel = level
}

// Get returns (or lazily creates) the named component logger.
func Get(name string) Logger {
	return &componentLogger{name: name}
}

// SetMinLoggingLevel sets the process-wide minimum LogLevel; anything below
// it is dropped before formatting, so hot paths (progress ticks) can log at
// VERBOSE without cost in production.
func SetMinLoggingLevel(level LogLevel) {
	manager.setMinLevel(level)
}

// ParseLevel converts a CLI-facing level name into a LogLevel, mirroring the
// set accepted by both the coordinatord and agent --log-level flags.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "verbose":
		return verbose, nil
	case "debug":
		return debug, nil
	case "info":
		return info, nil
	case "important":
		return important, nil
	case "warning":
		return warning, nil
	case "error":
		return err, nil
	default:
		return info, fmt.Errorf("unrecognized log level %q", s)
	}
}
