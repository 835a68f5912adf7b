// Package logging provides the Logger interface used throughout rockguard
// and its default implementations.
//
// Log format of DefaultLogger: YYYY/MM/DD HH:MM:SS LEVEL [component] message
//
// Example: 2026/10/18 09:12:44 INFO [db] opened /var/lib/app/db (read-only=false)
//
// Component prefixes:
//   - [db]     database open/close and data paths
//   - [cf]     column family create/drop
//   - [iter]   iterator registry
//   - [engine] messages forwarded from the storage engine
//   - [opts]   options file handling
package logging

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
	"sync/atomic"
)

// ErrFatal is wrapped by errors produced after the engine reported a fatal
// condition through Fatalf.
var ErrFatal = errors.New("fatal error")

// Level represents the logging level.
type Level int

const (
	// LevelError logs only errors.
	LevelError Level = iota
	// LevelWarn logs warnings and errors.
	LevelWarn
	// LevelInfo logs info, warnings, and errors.
	LevelInfo
	// LevelDebug logs everything.
	LevelDebug
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Logger is the logging interface accepted by Options.
//
// Implementations must be safe for concurrent use. Fatalf must not exit the
// process. The storage engine reports unrecoverable conditions through it;
// the engine then marks itself failed and every later call returns an
// error wrapping ErrFatal.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// DefaultLogger writes to an io.Writer through the standard log package.
type DefaultLogger struct {
	logger *log.Logger
	level  atomic.Int32
}

// NewDefaultLogger creates a logger writing to stderr.
func NewDefaultLogger(level Level) *DefaultLogger {
	return NewLogger(os.Stderr, level)
}

// NewLogger creates a logger writing to w.
func NewLogger(w io.Writer, level Level) *DefaultLogger {
	l := &DefaultLogger{logger: log.New(w, "", log.LstdFlags)}
	l.level.Store(int32(level))
	return l
}

// Level returns the current logging level.
func (l *DefaultLogger) Level() Level {
	return Level(l.level.Load())
}

// SetLevel changes the logging level.
func (l *DefaultLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *DefaultLogger) output(level Level, format string, args ...any) {
	if l.Level() >= level {
		_ = l.logger.Output(3, level.String()+" "+fmt.Sprintf(format, args...))
	}
}

// Errorf logs a formatted error message.
func (l *DefaultLogger) Errorf(format string, args ...any) { l.output(LevelError, format, args...) }

// Warnf logs a formatted warning message.
func (l *DefaultLogger) Warnf(format string, args ...any) { l.output(LevelWarn, format, args...) }

// Infof logs a formatted informational message.
func (l *DefaultLogger) Infof(format string, args ...any) { l.output(LevelInfo, format, args...) }

// Debugf logs a formatted debug message.
func (l *DefaultLogger) Debugf(format string, args ...any) { l.output(LevelDebug, format, args...) }

// Fatalf logs at FATAL regardless of level. It does not exit.
func (l *DefaultLogger) Fatalf(format string, args ...any) {
	_ = l.logger.Output(2, "FATAL "+fmt.Sprintf(format, args...))
}

// Component prefixes for log messages.
const (
	NSDB      = "[db] "
	NSCF      = "[cf] "
	NSIter    = "[iter] "
	NSEngine  = "[engine] "
	NSOptions = "[opts] "
)

// IsNil reports whether l is nil or a typed-nil pointer.
func IsNil(l Logger) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// OrDefault returns l, or a WARN-level stderr logger when l is unusable.
func OrDefault(l Logger) Logger {
	if IsNil(l) {
		return NewDefaultLogger(LevelWarn)
	}
	return l
}
