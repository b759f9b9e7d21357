// Package logging wires the process-wide zerolog setup: a console
// stream for humans plus a size-rotated pipeline.log for diagnostics.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for pipeline.log.
const (
	logMaxSizeMB  = 1
	logMaxBackups = 2
)

// Setup configures the global logger and returns a closer for the
// rotating file sink.
func Setup(baseDir string, debug bool) (io.Closer, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	fileSink := &lumberjack.Logger{
		Filename:   filepath.Join(baseDir, "pipeline.log"),
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, fileSink)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return fileSink, nil
}
