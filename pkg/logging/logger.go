// Package logging builds the zap loggers used by the daemon and CLI.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogDir is tried first for file logs, falling back to ./logs
const DefaultLogDir = "/var/log/vitals"

// ParseLevel parses a log level string, defaulting to info
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewLogger creates a logger writing to stdout.
// format is "json" or "console".
func NewLogger(level, format, serviceName string) (*zap.Logger, error) {
	return build(level, format, serviceName, []string{"stdout"})
}

// NewFileLogger creates a logger that writes to <dir>/<component>/<component>.log and stdout.
// An empty or unwritable dir falls back to DefaultLogDir, then ./logs.
func NewFileLogger(dir, component, level, format string) (*zap.Logger, string, error) {
	logPath, err := prepareLogPath(dir, component)
	if err != nil {
		return nil, "", err
	}

	logger, err := build(level, format, component, []string{logPath, "stdout"})
	if err != nil {
		return nil, "", err
	}
	logger.Info("Logger initialized", zap.String("path", logPath))
	return logger, logPath, nil
}

func build(level, format, serviceName string, outputs []string) (*zap.Logger, error) {
	var config zap.Config
	if format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	config.OutputPaths = outputs
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if serviceName != "" {
		logger = logger.With(zap.String("service_name", serviceName))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		logger = logger.With(zap.String("hostname", hostname))
	}
	return logger, nil
}

// GetLogPath returns the log file path a component would use
func GetLogPath(dir, component string) string {
	return filepath.Join(resolveBaseDir(dir), component, component+".log")
}

func prepareLogPath(dir, component string) (string, error) {
	logPath := GetLogPath(dir, component)
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}
	return logPath, nil
}

func resolveBaseDir(dir string) string {
	for _, candidate := range []string{dir, DefaultLogDir} {
		if candidate != "" && isWritable(candidate) {
			return candidate
		}
	}
	return "./logs"
}

// isWritable checks if directory is writable
func isWritable(path string) bool {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false
	}

	testFile := filepath.Join(path, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(testFile)
	return true
}
