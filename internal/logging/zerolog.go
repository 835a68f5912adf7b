package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to Logger.
//
// Messages carrying one of the NS* prefixes have it stripped and recorded
// in the "component" field instead.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerolog wraps zl.
func NewZerolog(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

func (l *ZerologLogger) emit(ev *zerolog.Event, format string, args []any) {
	if ev == nil {
		return
	}
	if c, rest, ok := splitComponent(format); ok {
		ev = ev.Str("component", c)
		format = rest
	}
	ev.Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) { l.emit(l.zl.Error(), format, args) }
func (l *ZerologLogger) Warnf(format string, args ...any)  { l.emit(l.zl.Warn(), format, args) }
func (l *ZerologLogger) Infof(format string, args ...any)  { l.emit(l.zl.Info(), format, args) }
func (l *ZerologLogger) Debugf(format string, args ...any) { l.emit(l.zl.Debug(), format, args) }

// Fatalf logs at fatal level without exiting the process.
func (l *ZerologLogger) Fatalf(format string, args ...any) {
	l.emit(l.zl.WithLevel(zerolog.FatalLevel), format, args)
}

func splitComponent(format string) (component, rest string, ok bool) {
	if !strings.HasPrefix(format, "[") {
		return "", format, false
	}
	end := strings.Index(format, "] ")
	if end < 2 {
		return "", format, false
	}
	return format[1:end], format[end+2:], true
}
