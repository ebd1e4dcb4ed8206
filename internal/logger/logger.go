// Package logger provides structured logging for vfslib.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with vfs-specific fields and helpers.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger.
func NewLogger(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "vfslib").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message.
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message.
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// VfsLogger returns a logger scoped to a single open store, tagged with the
// host file path so concurrent-process logs (e.g. the demo CLI run twice
// against different stores) stay distinguishable.
func (l *Logger) VfsLogger(path string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "vfs").
			Str("store", path).
			Logger(),
	}
}

// LogOpen logs a store being opened or initialized.
func (l *Logger) LogOpen(path string, initialized bool) {
	l.zlog.Info().
		Str("event", "store_open").
		Str("store", path).
		Bool("initialized", initialized).
		Msg("vfs store opened")
}

// LogClose logs a store being closed. The store path is already part of
// this logger's context (see VfsLogger), so it isn't repeated here.
func (l *Logger) LogClose() {
	l.zlog.Info().
		Str("event", "store_close").
		Msg("vfs store closed")
}

// LogOperation logs a single facade operation (CreateDir, Create, Delete,
// OpenFile, ReadDir, ...) with its path argument and outcome.
func (l *Logger) LogOperation(operation, path string, duration time.Duration, err error) {
	event := l.zlog.Debug().
		Str("component", "vfs").
		Str("operation", operation).
		Str("path", path).
		Dur("duration_ms", duration)

	if err != nil {
		event = l.zlog.Warn().
			Str("component", "vfs").
			Str("operation", operation).
			Str("path", path).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("vfs operation completed")
}

// LogCommit logs a journal schedule+resolve round trip: how many entries it
// carried and how long the schedule and resolve together took.
func (l *Logger) LogCommit(entryCount int, duration time.Duration, err error) {
	event := l.zlog.Debug().
		Str("component", "journal").
		Int("entry_count", entryCount).
		Dur("duration_ms", duration)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "journal").
			Int("entry_count", entryCount).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("journal commit")
}

// LogRelocate logs a relocate-on-grow event for either the file table or a
// single file's content run.
func (l *Logger) LogRelocate(subject string, fromPage, toPage, pageCount uint64) {
	l.zlog.Debug().
		Str("component", "vfs").
		Str("event", "relocate").
		Str("subject", subject).
		Uint64("from_page", fromPage).
		Uint64("to_page", toPage).
		Uint64("page_count", pageCount).
		Msg("relocated page run")
}

// Global logger instance.
var globalLogger *Logger

// InitGlobalLogger initializes the global logger.
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance.
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
