// Package logger provides the process-wide structured logger, ported
// from the teacher's own logger package: a package-level logrus
// instance, a custom formatter that reports the caller's file/line,
// and a thin set of wrapper functions so call sites read like plain
// log statements instead of logrus boilerplate.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Log is the package-wide logger. It is safe for concurrent use, as
// logrus guarantees.
var Log = logrus.New()

// Config controls Init.
type Config struct {
	Level    string // "debug", "info", "warn", "error"; default "info"
	FilePath string // optional; if set, logs fan out to stdout + this file
}

func init() {
	Log.SetFormatter(&CustomFormatter{})
	Log.SetLevel(logrus.InfoLevel)
	Log.SetOutput(os.Stdout)
}

// Init applies cfg to the package logger. Call once at startup.
func Init(cfg Config) error {
	Log.SetLevel(parseLevel(cfg.Level))
	if cfg.FilePath == "" {
		Log.SetOutput(os.Stdout)
		return nil
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		Log.SetOutput(os.Stdout)
		return err
	}
	Log.SetOutput(io.MultiWriter(os.Stdout, f))
	return nil
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// CustomFormatter renders `timestamp level caller: message key=value...`,
// skipping frames belonging to this package and to logrus itself so the
// reported caller is always the real call site.
type CustomFormatter struct{}

func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(entry.Time.Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(entry.Level.String()))
	b.WriteByte(' ')
	if caller := getCaller(); caller != "" {
		b.WriteString(caller)
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)
	for k, v := range entry.Data {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func getCaller() string {
	for skip := 2; skip < 15; skip++ {
		_, file, line, ok := runtime.Caller(skip)
		if !ok {
			return ""
		}
		if strings.Contains(file, "sirupsen/logrus") || strings.Contains(file, "internal/logger/logger.go") {
			continue
		}
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return ""
}

func Debug(args ...interface{})                 { Log.Debug(args...) }
func Debugf(format string, args ...interface{}) { Log.Debugf(format, args...) }
func Info(args ...interface{})                  { Log.Info(args...) }
func Infof(format string, args ...interface{})  { Log.Infof(format, args...) }
func Warn(args ...interface{})                  { Log.Warn(args...) }
func Warnf(format string, args ...interface{})  { Log.Warnf(format, args...) }
func Error(args ...interface{})                 { Log.Error(args...) }
func Errorf(format string, args ...interface{}) { Log.Errorf(format, args...) }

// WithFields returns an entry carrying structured fields, for call
// sites that want `logger.WithFields(...).Info(...)`.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return Log.WithFields(logrus.Fields(fields))
}
