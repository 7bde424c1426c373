package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory names one of the daily JSON event files
type LogCategory string

const (
	CategoryQueue    LogCategory = "queue"    // run lifecycle, retry queue
	CategoryTransfer LogCategory = "transfer" // transfer state machine decisions
	CategoryError    LogCategory = "error"    // application errors only
)

// Categories lists every category that has its own log file
var Categories = []LogCategory{CategoryQueue, CategoryTransfer, CategoryError}

// ValidCategory reports whether c names a known log category
func ValidCategory(c LogCategory) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

const dateLayout = "20060102"

// LogFileName returns the file name used for a category on a given day
func LogFileName(category LogCategory, date time.Time) string {
	return fmt.Sprintf("%s-%s.log", category, date.Format(dateLayout))
}

// categorySink is the open file and logger of one category for one day
type categorySink struct {
	logger *zap.Logger
	file   *os.File
	date   string
	level  zapcore.Level
}

// MultiLogger writes structured events to one JSON file per category and day.
// Files roll over on the first write after midnight so LogReader can address them by date.
type MultiLogger struct {
	mu      sync.Mutex
	config  MultiLoggerConfig
	sinks   map[LogCategory]*categorySink
	encoder zapcore.EncoderConfig
	now     func() time.Time
}

// MultiLoggerConfig contains configuration for categorized file logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string
}

// NewMultiLogger opens today's file for every category under config.LogsDir
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	return newMultiLogger(config, time.Now)
}

func newMultiLogger(config MultiLoggerConfig, now func() time.Time) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}
	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "ts"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.CallerKey = ""

	ml := &MultiLogger{
		config:  config,
		sinks:   make(map[LogCategory]*categorySink, len(Categories)),
		encoder: encoder,
		now:     now,
	}

	today := now()
	for _, category := range Categories {
		sinkLevel := level
		if category == CategoryError {
			sinkLevel = zapcore.ErrorLevel
		}
		sink := &categorySink{level: sinkLevel}
		if err := ml.open(category, sink, today); err != nil {
			ml.Close()
			return nil, fmt.Errorf("failed to create %s logger: %w", category, err)
		}
		ml.sinks[category] = sink
	}

	return ml, nil
}

// open points sink at the category file for date, closing whatever it held before
func (ml *MultiLogger) open(category LogCategory, sink *categorySink, date time.Time) error {
	path := filepath.Join(ml.config.LogsDir, LogFileName(category, date))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	if sink.file != nil {
		_ = sink.logger.Sync()
		_ = sink.file.Close()
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(ml.encoder), zapcore.AddSync(file), sink.level)
	sink.logger = zap.New(core)
	sink.file = file
	sink.date = date.Format(dateLayout)
	return nil
}

// logger returns the category logger, rolling its file if the day changed
func (ml *MultiLogger) logger(category LogCategory) *zap.Logger {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	sink, ok := ml.sinks[category]
	if !ok {
		sink = ml.sinks[CategoryError]
	}
	if sink == nil || sink.file == nil {
		return zap.NewNop()
	}

	now := ml.now()
	if now.Format(dateLayout) != sink.date {
		// on failure the previous day's file stays in use
		_ = ml.open(category, sink, now)
	}
	return sink.logger
}

// LogAppError logs an application-level error
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.logger(CategoryError).Error(msg, fields...)
}

// LogQueueEvent logs a run or retry queue event
func (ml *MultiLogger) LogQueueEvent(event string, fields ...zap.Field) {
	ml.logger(CategoryQueue).Info(event, fields...)
}

// LogTransferEvent logs a transfer state machine decision
func (ml *MultiLogger) LogTransferEvent(event string, fields ...zap.Field) {
	ml.logger(CategoryTransfer).Info(event, fields...)
}

// Sync flushes all category files
func (ml *MultiLogger) Sync() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, sink := range ml.sinks {
		if sink.file == nil {
			continue
		}
		if err := sink.logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes and closes all category files. Later events are discarded.
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, sink := range ml.sinks {
		if sink.file == nil {
			continue
		}
		if err := sink.logger.Sync(); err != nil {
			lastErr = err
		}
		if err := sink.file.Close(); err != nil {
			lastErr = err
		}
		sink.file = nil
	}
	return lastErr
}
