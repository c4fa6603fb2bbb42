// Package logging configures structured JSON logging for the depot
// services and CLI, with optional rotated file output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger construction.
type Config struct {
	// Level is a logrus level name ("debug", "info", ...). Empty means
	// info.
	Level string

	// FilePath, when set, sends output to a size-rotated log file instead
	// of stderr.
	FilePath string

	// MaxSizeMB and MaxBackups tune file rotation.
	MaxSizeMB  int
	MaxBackups int
}

// New builds a logrus logger from cfg. A file output that cannot be
// created degrades to stderr rather than failing startup.
func New(cfg Config) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
		level = parsed
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	output, err := buildOutput(cfg)
	logger.SetOutput(output)
	if err != nil {
		logger.WithError(err).WithField("path", cfg.FilePath).Warn("log file unavailable, using stderr")
	}
	return logger, nil
}

// buildOutput returns the configured writer, falling back to stderr with
// the causing error when the log directory cannot be created.
func buildOutput(cfg Config) (io.Writer, error) {
	if cfg.FilePath == "" {
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return os.Stderr, err
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	}, nil
}
