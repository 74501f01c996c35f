// Package logger provides the zerolog adapter for the core logging
// interface.
package logger

import corelogger "github.com/kilianp07/skyplan/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns the process logger for a component, configured from APP_ENV
// and LOG_LEVEL.
func New(component string) Logger {
	return NewZerologLogger(component)
}
