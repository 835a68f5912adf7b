package engine

import (
	"fmt"

	"github.com/aalhour/rockguard/internal/logging"
)

// pebbleLogger routes Pebble's log output into a logging.Logger. Pebble's
// Fatalf never returns in its default logger; here it marks the engine
// failed instead of exiting.
type pebbleLogger struct {
	log     logging.Logger
	onFatal func(msg string)
}

func (l pebbleLogger) Infof(format string, args ...any) {
	l.log.Infof(logging.NSEngine+format, args...)
}

func (l pebbleLogger) Errorf(format string, args ...any) {
	l.log.Errorf(logging.NSEngine+format, args...)
}

func (l pebbleLogger) Fatalf(format string, args ...any) {
	l.log.Fatalf(logging.NSEngine+format, args...)
	if l.onFatal != nil {
		l.onFatal(fmt.Sprintf(format, args...))
	}
}
