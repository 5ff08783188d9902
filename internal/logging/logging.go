// Package logging builds the service's JSON logrus logger, optionally teeing
// output into a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level and file output.
type Config struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger is a logrus logger that owns its rotated file, if any.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// New creates a JSON logger writing to stdout, and also to cfg.File when set.
func New(cfg Config) (*Logger, error) {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	logger := &Logger{Logger: logrus.New()}
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("log directory: %w", err)
		}
		logger.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, logger.file)
	}
	logger.SetOutput(out)
	return logger, nil
}

// Close flushes and closes the rotated file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
