package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelbind/relate/utils"
)

// SlogLogger implements Interface using log/slog
type SlogLogger struct {
	Logger                    *slog.Logger
	LogLevel                  LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// NewSlogLogger creates a new logger using slog
func NewSlogLogger(logger *slog.Logger, config Config) Interface {
	return &SlogLogger{
		Logger:                    logger,
		LogLevel:                  config.LogLevel,
		SlowThreshold:             config.SlowThreshold,
		IgnoreRecordNotFoundError: config.IgnoreRecordNotFoundError,
	}
}

// LogMode sets the log level
func (l *SlogLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info logs info messages
func (l *SlogLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.Logger.InfoContext(ctx, msg, "file", utils.FileWithLineNum(), "data", data)
	}
}

// Warn logs warning messages
func (l *SlogLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.Logger.WarnContext(ctx, msg, "file", utils.FileWithLineNum(), "data", data)
	}
}

// Error logs error messages
func (l *SlogLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.Logger.ErrorContext(ctx, msg, "file", utils.FileWithLineNum(), "data", data)
	}
}

// Trace logs data-source operations with duration and row count
func (l *SlogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.LogLevel >= Error && (!errors.Is(err, ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		op, rows := fc()
		l.Logger.ErrorContext(ctx, "operation failed",
			"error", err,
			"file", utils.FileWithLineNum(),
			"elapsed", elapsed,
			"rows", rows,
			"op", op,
		)
	case elapsed > l.SlowThreshold && l.SlowThreshold != 0 && l.LogLevel >= Warn:
		op, rows := fc()
		l.Logger.WarnContext(ctx, fmt.Sprintf("SLOW OPERATION >= %v", l.SlowThreshold),
			"file", utils.FileWithLineNum(),
			"elapsed", elapsed,
			"rows", rows,
			"op", op,
		)
	case l.LogLevel == Info:
		op, rows := fc()
		l.Logger.InfoContext(ctx, "operation",
			"file", utils.FileWithLineNum(),
			"elapsed", elapsed,
			"rows", rows,
			"op", op,
		)
	}
}

// SlogLevel converts LogLevel to slog.Level
func SlogLevel(level LogLevel) slog.Level {
	switch level {
	case Silent:
		return slog.LevelError + 4
	case Error:
		return slog.LevelError
	case Warn:
		return slog.LevelWarn
	case Info:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}
