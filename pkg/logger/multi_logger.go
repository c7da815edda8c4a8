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

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryAcquire LogCategory = "acquire" // Provider attempts and finished acquisitions (JSON)
	CategoryAccess  LogCategory = "access"  // HTTP requests (JSON)
	CategoryError   LogCategory = "error"   // Application errors (JSON)
	// CategoryProcess is the raw subprocess output log written by the runner
	CategoryProcess LogCategory = "process"
)

// Categories returns the categories that can be read back
func Categories() []LogCategory {
	return []LogCategory{CategoryAcquire, CategoryAccess, CategoryError, CategoryProcess}
}

// ValidCategory reports whether c names a known category
func ValidCategory(c LogCategory) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

type categorySink struct {
	logger *zap.Logger
	file   *os.File
	level  zapcore.Level
}

// MultiLogger writes each category to its own per-day JSON file
type MultiLogger struct {
	sinks       map[LogCategory]*categorySink
	config      MultiLoggerConfig
	mu          sync.RWMutex
	currentDate string
	now         func() time.Time
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
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

	ml := &MultiLogger{
		sinks:  make(map[LogCategory]*categorySink),
		config: config,
		now:    time.Now,
	}
	ml.currentDate = ml.now().Format("20060102")

	levels := map[LogCategory]zapcore.Level{
		CategoryAcquire: level,
		CategoryAccess:  level,
		CategoryError:   zapcore.ErrorLevel,
	}
	for category, lvl := range levels {
		sink, err := ml.openSink(category, lvl)
		if err != nil {
			ml.Close()
			return nil, fmt.Errorf("failed to create %s logger: %w", category, err)
		}
		ml.sinks[category] = sink
	}

	return ml, nil
}

// openSink creates a JSON logger appending to today's file for category
func (ml *MultiLogger) openSink(category LogCategory, level zapcore.Level) (*categorySink, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = ""

	path := categoryLogPath(ml.config.LogsDir, category, ml.now())
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), level)
	return &categorySink{logger: zap.New(core), file: file, level: level}, nil
}

// rotate reopens every sink when the date has changed
func (ml *MultiLogger) rotate() {
	today := ml.now().Format("20060102")

	ml.mu.RLock()
	same := today == ml.currentDate
	ml.mu.RUnlock()
	if same {
		return
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if today == ml.currentDate {
		return
	}
	for category, old := range ml.sinks {
		sink, err := ml.openSink(category, old.level)
		if err != nil {
			continue
		}
		old.logger.Sync()
		old.file.Close()
		ml.sinks[category] = sink
	}
	ml.currentDate = today
}

func categoryLogPath(dir string, category LogCategory, date time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.log", category, date.Format("20060102")))
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.rotate()

	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if sink, ok := ml.sinks[category]; ok {
		return sink.logger
	}
	return ml.sinks[CategoryError].logger
}

// Acquire returns the acquisition logger
func (ml *MultiLogger) Acquire() *zap.Logger {
	return ml.GetLogger(CategoryAcquire)
}

// Access returns the HTTP access logger
func (ml *MultiLogger) Access() *zap.Logger {
	return ml.GetLogger(CategoryAccess)
}

// Error returns the error logger
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogAppError logs an application-level error (Go errors, panics)
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
}

// LogAcquireEvent logs one acquisition event with structured data
func (ml *MultiLogger) LogAcquireEvent(event string, fields ...zap.Field) {
	ml.Acquire().Info(event, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, sink := range ml.sinks {
		if err := sink.logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes and closes every category file
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, sink := range ml.sinks {
		sink.logger.Sync()
		if err := sink.file.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
