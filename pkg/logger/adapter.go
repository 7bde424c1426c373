package logger

import (
	"go.uber.org/zap"
)

// LoggerAdapter pairs the console logger with the optional categorized file loggers.
// Components log human-readable lines through Base and structured events through the
// Log* helpers, which fan out to both sinks.
type LoggerAdapter struct {
	multiLogger  *MultiLogger
	singleLogger *zap.Logger
}

// NewLoggerAdapter creates a logger adapter writing to base and, when non-nil, to multi
func NewLoggerAdapter(base *zap.Logger, multi *MultiLogger) *LoggerAdapter {
	if base == nil {
		base = zap.NewNop()
	}
	return &LoggerAdapter{
		multiLogger:  multi,
		singleLogger: base,
	}
}

// NewSingleLoggerAdapter creates an adapter that only writes to one logger
func NewSingleLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return NewLoggerAdapter(logger, nil)
}

// NewNopAdapter returns an adapter that discards everything
func NewNopAdapter() *LoggerAdapter {
	return NewLoggerAdapter(zap.NewNop(), nil)
}

// Base returns the console logger
func (la *LoggerAdapter) Base() *zap.Logger {
	return la.singleLogger
}

// LogQueueEvent records a run/queue event
func (la *LoggerAdapter) LogQueueEvent(event string, fields ...zap.Field) {
	la.singleLogger.Info(event, fields...)
	if la.multiLogger != nil {
		la.multiLogger.LogQueueEvent(event, fields...)
	}
}

// LogTransferEvent records a transfer state machine decision
func (la *LoggerAdapter) LogTransferEvent(event string, fields ...zap.Field) {
	la.singleLogger.Info(event, fields...)
	if la.multiLogger != nil {
		la.multiLogger.LogTransferEvent(event, fields...)
	}
}

// LogError logs an error to the console and the error category
func (la *LoggerAdapter) LogError(msg string, fields ...zap.Field) {
	la.singleLogger.Error(msg, fields...)
	if la.multiLogger != nil {
		la.multiLogger.LogAppError(msg, fields...)
	}
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	var lastErr error
	if err := la.singleLogger.Sync(); err != nil {
		lastErr = err
	}
	if la.multiLogger != nil {
		if err := la.multiLogger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// GetMultiLogger returns the underlying multi-logger, nil when file logging is off
func (la *LoggerAdapter) GetMultiLogger() *MultiLogger {
	return la.multiLogger
}
