package logging

// DiscardLogger drops every message.
type DiscardLogger struct{}

// Discard is a shared DiscardLogger.
var Discard Logger = DiscardLogger{}

func (DiscardLogger) Errorf(format string, args ...any) {}
func (DiscardLogger) Warnf(format string, args ...any)  {}
func (DiscardLogger) Infof(format string, args ...any)  {}
func (DiscardLogger) Debugf(format string, args ...any) {}
func (DiscardLogger) Fatalf(format string, args ...any) {}
