// Package log provides the process-wide structured logger, backed by logrus.
package log

import (
	"sync"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.RWMutex
	logger Logger = newDefault()
	output *MultiWriter // appenders of the Init logger, nil for the default
)

// GetLogger returns the process logger. Before Init it is an info-level
// stderr logger, so it is always safe to use.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the process logger with one built from cfg and closes the
// file appenders of the logger it replaces.
func Init(cfg *Config) error {
	l, out, err := initByConfig(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	prev := output
	logger, output = l, out
	mu.Unlock()
	if prev != nil {
		return prev.Close()
	}
	return nil
}
