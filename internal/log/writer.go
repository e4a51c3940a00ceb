package log

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

type FileAppenderOpt struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type MultiWriter struct {
	writers []io.Writer
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		_, e := w.Write(p)
		if e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

func (m *MultiWriter) AddFileAppender(options FileAppenderOpt) *MultiWriter {
	writer := &lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSize,    // megabytes
		MaxBackups: options.MaxBackups, // number of backups
		MaxAge:     options.MaxAge,     // days
		Compress:   options.Compress,   // compress the backups
	}
	m.writers = append(m.writers, writer)
	return m
}
