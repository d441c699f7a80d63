package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/mail-sentinel/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFileName is the file written inside logging.dir
const LogFileName = "sentinel.log"

// ParseLevel maps a config value to a zap level, defaulting to info
func ParseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger initializes a logger based on configuration. Console output uses
// the configured level and format; unless disabled, a JSON file in
// logging.dir receives everything at debug level.
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	logCfg := cfg.GetLogging()

	console := zapcore.NewCore(
		consoleEncoder(logCfg.Format == "json"),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(ParseLevel(logCfg.Level)),
	)
	if logCfg.DisableFile || logCfg.Dir == "" {
		return zap.New(console, zap.AddCaller()), nil
	}

	if err := os.MkdirAll(logCfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	sink, _, err := zap.Open(filepath.Join(logCfg.Dir, LogFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	file := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		sink,
		zapcore.DebugLevel,
	)

	return zap.New(zapcore.NewTee(console, file), zap.AddCaller()), nil
}

func consoleEncoder(jsonFormat bool) zapcore.Encoder {
	if jsonFormat {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

// InitConsoleLogger initializes a console-friendly logger
func InitConsoleLogger(verbose bool, jsonFormat bool) (*zap.Logger, error) {
	var level zapcore.Level
	if verbose {
		level = zapcore.DebugLevel
	} else {
		level = zapcore.InfoLevel
	}

	var logConfig zap.Config
	if jsonFormat {
		logConfig = zap.NewProductionConfig()
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
