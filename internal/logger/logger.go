// Package logger configures structured logging with file rotation.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"tdr-agent/internal/config"
)

// Setup installs the default slog logger described by cfg. Logs go to stderr
// unless a file is configured, so stdout stays free for the MCP transport.
// The returned cleanup closes the log file.
func Setup(cfg config.LoggingConfig) (func() error, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var writer io.Writer = os.Stderr
	cleanup := func() error { return nil }

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		writer = lj
		cleanup = lj.Close
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(writer, opts)))
	return cleanup, nil
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger records model interactions
type Logger struct {
	log *slog.Logger
}

// New wraps l. A nil l uses the default logger at call time.
func New(l *slog.Logger) *Logger {
	return &Logger{log: l}
}

func (l *Logger) logger() *slog.Logger {
	if l == nil || l.log == nil {
		return slog.Default()
	}
	return l.log
}

// LogLLMInteraction logs one model call. Prompts and replies are only
// emitted at debug level.
func (l *Logger) LogLLMInteraction(operation string, input, output any, err error) {
	log := l.logger().With("operation", operation)
	if err != nil {
		log.Warn("model call failed", "error", err)
		log.Debug("model call input", "input", input)
		return
	}
	log.Debug("model call", "input", input, "output", output)
}
