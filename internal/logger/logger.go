package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const tagKey = "tag"

var (
	mu            sync.RWMutex
	defaultLogger = zerolog.New(io.Discard)
	activeConfig  = NewConfig()
	logFile       *os.File
)

// Init configures the package logger. Until Init is called all output is
// discarded. Calling Init again replaces the previous configuration and
// closes a previously opened log file.
func Init(cfg Config) error {
	cfg.process()

	var output io.Writer = os.Stderr
	var file *os.File
	if cfg.LogFilePath != "" && cfg.LogFilePath != "-" {
		f, err := os.OpenFile(cfg.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file '%s': %w", cfg.LogFilePath, err)
		}
		output = f
		file = f
	}
	if cfg.Console {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.TimeOnly}
	}

	l := zerolog.New(output).Level(cfg.level).With().Timestamp().Logger()

	mu.Lock()
	if logFile != nil {
		_ = logFile.Close()
	}
	defaultLogger = l
	activeConfig = cfg
	logFile = file
	mu.Unlock()

	l.Info().Str("level", cfg.level.String()).Msg("Logger initialized")
	return nil
}

// SetOutput routes logging to w at the given level. Used by tests and tools
// that want to capture log lines.
func SetOutput(w io.Writer, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Get retrieves the configured logger instance.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func logAtLevel(level zerolog.Level, tag string, format string, args ...interface{}) {
	mu.RLock()
	l := defaultLogger
	disabled := tag != "" && activeConfig.tagDisabled(tag)
	mu.RUnlock()
	if disabled {
		return
	}
	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	if tag != "" {
		ev = ev.Str(tagKey, tag)
	}
	ev.Msgf(format, args...)
}

// Debugf logs a debug message using Printf-style formatting.
func Debugf(format string, args ...interface{}) {
	logAtLevel(zerolog.DebugLevel, "", format, args...)
}

// Infof logs an info message using Printf-style formatting.
func Infof(format string, args ...interface{}) {
	logAtLevel(zerolog.InfoLevel, "", format, args...)
}

// Warnf logs a warning message using Printf-style formatting.
func Warnf(format string, args ...interface{}) {
	logAtLevel(zerolog.WarnLevel, "", format, args...)
}

// Errorf logs an error message using Printf-style formatting.
func Errorf(format string, args ...interface{}) {
	logAtLevel(zerolog.ErrorLevel, "", format, args...)
}

// Fatalf logs an error message then exits.
func Fatalf(format string, args ...interface{}) {
	logAtLevel(zerolog.ErrorLevel, "", format, args...)
	os.Exit(1)
}

// Tagged logs every message with a fixed tag attribute so whole components
// can be silenced through Config.DisabledTags.
type Tagged struct {
	tag string
}

// Tag returns a logger that stamps messages with tag.
func Tag(tag string) Tagged {
	return Tagged{tag: tag}
}

func (t Tagged) Debugf(format string, args ...interface{}) {
	logAtLevel(zerolog.DebugLevel, t.tag, format, args...)
}

func (t Tagged) Infof(format string, args ...interface{}) {
	logAtLevel(zerolog.InfoLevel, t.tag, format, args...)
}

func (t Tagged) Warnf(format string, args ...interface{}) {
	logAtLevel(zerolog.WarnLevel, t.tag, format, args...)
}

func (t Tagged) Errorf(format string, args ...interface{}) {
	logAtLevel(zerolog.ErrorLevel, t.tag, format, args...)
}
