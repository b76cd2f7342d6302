// Package log configures the process wide slog logger.
package log

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	charmlog "charm.land/log/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log records go.
type Options struct {
	// File switches to JSON records in a rotated file.
	File       string
	Debug      bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	initOnce sync.Once
	closer   io.Closer
)

// Setup installs the default logger. Only the first call has an effect.
func Setup(opts Options) error {
	var err error
	initOnce.Do(func() {
		var handler slog.Handler
		handler, closer, err = newHandler(opts, os.Stderr)
		if err != nil {
			return
		}
		slog.SetDefault(slog.New(handler))
	})
	return err
}

// Close flushes and closes the log file, if any.
func Close() error {
	if closer == nil {
		return nil
	}
	return closer.Close()
}

func newHandler(opts Options, stderr io.Writer) (slog.Handler, io.Closer, error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	if opts.File == "" {
		logger := charmlog.NewWithOptions(stderr, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: opts.Debug,
			Prefix:          "buildlens",
		})
		return logger, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, err
	}
	w := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   false,
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), w, nil
}
