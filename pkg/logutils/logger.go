// Package logutils builds the process-wide zerolog logger.
package logutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the log file.
const (
	MaxSizeMB  = 10
	MaxBackups = 5
	MaxAgeDays = 30
)

// New returns a new logger that writes JSON to the specified file, rotating
// it once it grows past MaxSizeMB. If file is empty, logs are written to
// stderr so they never mix with command output on stdout.
//
// The level parameter can be one of: debug, info, warn, error, fatal.
func New(level string, file string) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, closer, err
	}

	var writer io.Writer = os.Stderr
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}

		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAgeDays,
			Compress:   true,
		}
		closer = func() { _ = rotator.Close() }
		writer = rotator
	}

	l := zerolog.New(writer).
		With().
		Timestamp().
		Logger().
		Level(lvl)

	return l, closer, nil
}
