// Package logger holds the process-wide structured logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger. It is usable before Init with logrus defaults.
var Log = logrus.New()

var logFile *os.File

// Init configures level and output. When logDir is not empty the log is
// also appended to nihongo_quest.log inside it.
func Init(level, logDir string) error {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if logDir == "" {
		Log.SetOutput(os.Stdout)
		return nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		Log.SetOutput(os.Stdout)
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, "nihongo_quest.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		Log.SetOutput(os.Stdout)
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f
	Log.SetOutput(io.MultiWriter(os.Stdout, f))
	return nil
}

// For returns an entry tagged with the component name
func For(component string) *logrus.Entry {
	return Log.WithField("component", component)
}

// Close flushes and closes the log file, if one is open
func Close() error {
	if logFile == nil {
		return nil
	}
	Log.SetOutput(os.Stdout)
	err := logFile.Close()
	logFile = nil
	return err
}
