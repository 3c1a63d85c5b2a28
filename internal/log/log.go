// Package log provides the process-wide logger, backed by logrus.
package log

import (
	"os"
	"sync"

	"firestige.xyz/erfreader/internal/config"
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
)

// GetLogger returns the current logger. Before Init it writes info and
// above to stderr.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the current logger with one built from cfg.
func Init(cfg config.LogConfig) error {
	l, err := newLogrus(cfg, NewMultiWriter().Add(os.Stderr))
	if err != nil {
		return err
	}

	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// SetLevel changes the level of the current logger.
func SetLevel(level string) error {
	mu.RLock()
	defer mu.RUnlock()
	if a, ok := logger.(*logrusAdapter); ok {
		return a.setLevel(level)
	}
	return nil
}
