package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelbind/relate/utils"
)

// LogrusLogger implements Interface using logrus
type LogrusLogger struct {
	Logger                    *logrus.Logger
	LogLevel                  LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// NewLogrusLogger creates a new logger using logrus
func NewLogrusLogger(logger *logrus.Logger, config Config) Interface {
	return &LogrusLogger{
		Logger:                    logger,
		LogLevel:                  config.LogLevel,
		SlowThreshold:             config.SlowThreshold,
		IgnoreRecordNotFoundError: config.IgnoreRecordNotFoundError,
	}
}

// NewLogrusLoggerWithConfig creates a new logrus logger with default configuration
func NewLogrusLoggerWithConfig(config Config) Interface {
	logger := logrus.New()
	logger.SetLevel(LogrusLevel(config.LogLevel))
	return NewLogrusLogger(logger, config)
}

// LogMode sets the log level
func (l *LogrusLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info logs info messages
func (l *LogrusLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.Logger.WithContext(ctx).WithFields(logrus.Fields{
			"file": utils.FileWithLineNum(),
			"data": data,
		}).Info(msg)
	}
}

// Warn logs warning messages
func (l *LogrusLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.Logger.WithContext(ctx).WithFields(logrus.Fields{
			"file": utils.FileWithLineNum(),
			"data": data,
		}).Warn(msg)
	}
}

// Error logs error messages
func (l *LogrusLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.Logger.WithContext(ctx).WithFields(logrus.Fields{
			"file": utils.FileWithLineNum(),
			"data": data,
		}).Error(msg)
	}
}

// Trace logs data-source operations with duration and row count
func (l *LogrusLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.LogLevel >= Error && (!errors.Is(err, ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		op, rows := fc()
		l.Logger.WithContext(ctx).WithFields(logrus.Fields{
			"file":    utils.FileWithLineNum(),
			"elapsed": elapsed,
			"rows":    rows,
			"op":      op,
		}).WithError(err).Error("operation failed")
	case elapsed > l.SlowThreshold && l.SlowThreshold != 0 && l.LogLevel >= Warn:
		op, rows := fc()
		l.Logger.WithContext(ctx).WithFields(logrus.Fields{
			"file":    utils.FileWithLineNum(),
			"elapsed": elapsed,
			"rows":    rows,
			"op":      op,
		}).Warn(fmt.Sprintf("SLOW OPERATION >= %v", l.SlowThreshold))
	case l.LogLevel == Info:
		op, rows := fc()
		l.Logger.WithContext(ctx).WithFields(logrus.Fields{
			"file":    utils.FileWithLineNum(),
			"elapsed": elapsed,
			"rows":    rows,
			"op":      op,
		}).Info("operation")
	}
}

// LogrusLevel converts LogLevel to logrus.Level
func LogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case Silent:
		return logrus.FatalLevel
	case Error:
		return logrus.ErrorLevel
	case Warn:
		return logrus.WarnLevel
	case Info:
		return logrus.InfoLevel
	default:
		return logrus.WarnLevel
	}
}
