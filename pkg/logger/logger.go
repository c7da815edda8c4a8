package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config represents logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	// OutputPath is stdout, stderr or a file path. Several sinks may be
	// given separated by commas, e.g. "stdout,/var/log/mediabridge.log".
	OutputPath string
	Service    string // added to every line when set
}

// New creates a logger from config. An unknown level falls back to info.
func New(config Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	sink, err := openSinks(config.OutputPath)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(config.Format), sink, level)
	log := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if config.Service != "" {
		log = log.With(zap.String("service", config.Service))
	}
	return log, nil
}

// NewDefault creates a console logger on stdout at info level
func NewDefault() *zap.Logger {
	log, _ := New(Config{Level: "info", Format: "console", OutputPath: "stdout"})
	return log
}

func newEncoder(format string) zapcore.Encoder {
	if format == "json" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "timestamp"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}

	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func openSinks(outputPath string) (zapcore.WriteSyncer, error) {
	var syncers []zapcore.WriteSyncer
	for _, target := range strings.Split(outputPath, ",") {
		ws, err := openSink(strings.TrimSpace(target))
		if err != nil {
			return nil, err
		}
		syncers = append(syncers, ws)
	}
	if len(syncers) == 1 {
		return syncers[0], nil
	}
	return zapcore.NewMultiWriteSyncer(syncers...), nil
}

func openSink(target string) (zapcore.WriteSyncer, error) {
	switch target {
	case "stdout", "":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", target, err)
	}
	return zapcore.AddSync(file), nil
}
