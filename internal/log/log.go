// Package log wraps logrus behind a small interface so callers never
// depend on the backing implementation.
package log

import (
	"sync"
)

type Logger interface {
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

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
}

var (
	mu     sync.Mutex
	logger Logger
)

// GetLogger returns the process logger, initializing it with defaults on
// first use.
func GetLogger() Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		l, err := newLogger(DefaultConfig())
		if err != nil {
			panic(err)
		}
		logger = l
	}
	return logger
}

// Init replaces the process logger with one built from cfg.
func Init(cfg Config) error {
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}
