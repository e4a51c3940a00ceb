package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Config controls the process logger. File output is enabled by setting
// File.Filename; rotation is handled by lumberjack.
type Config struct {
	Level   string          `mapstructure:"level"`
	Pattern string          `mapstructure:"pattern"`
	Time    string          `mapstructure:"time"`
	File    FileAppenderOpt `mapstructure:"file"`
}

// DefaultConfig returns console-only logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Pattern: "%time [%level] %field %msg\n",
		Time:    "2006-01-02 15:04:05.000",
	}
}

type logrusAdapter struct {
	entry *logrus.Entry
}

func newLogger(cfg Config) (Logger, error) {
	def := DefaultConfig()
	if cfg.Pattern == "" {
		cfg.Pattern = def.Pattern
	}
	if cfg.Time == "" {
		cfg.Time = def.Time
	}

	l := logrus.New()
	l.SetFormatter(&formatter{
		pattern: cfg.Pattern,
		time:    cfg.Time,
	})
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	out := NewMultiWriter().Add(os.Stderr)
	if cfg.File.Filename != "" {
		out.AddFileAppender(cfg.File)
	}
	l.SetOutput(out)

	return &logrusAdapter{entry: logrus.NewEntry(l)}, nil
}

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
