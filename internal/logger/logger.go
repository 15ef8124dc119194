// Package logger builds the shared logrus logger with file rotation.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation policy for the log file.
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 30
)

// Settings defines the configuration for the logger.
type Settings struct {
	Level    string // log level (e.g. "info", "debug", "error")
	FilePath string // path to the log file, empty disables file output
	Console  bool   // whether to also log to the console
}

// New returns a logrus.Logger configured according to settings. File
// output rotates via lumberjack; console output is plain text.
func New(settings Settings) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(settings.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	var writers []io.Writer

	if settings.FilePath != "" {
		dir := filepath.Dir(settings.FilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   settings.FilePath,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		})
	}

	if settings.Console || settings.FilePath == "" {
		writers = append(writers, os.Stderr)
	}

	if len(writers) > 1 {
		log.SetOutput(io.MultiWriter(writers...))
	} else if len(writers) == 1 {
		log.SetOutput(writers[0])
	}

	return log, nil
}
