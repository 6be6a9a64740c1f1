package logging

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format selects the handler: "json" or "text".
	Format string
	// FilePath is the path to the log file. Empty means no file logging.
	FilePath string
	// MaxSizeMB is the maximum size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxFiles is the maximum number of rotated files to keep (default: 5).
	MaxFiles int
	// WriteToStderr whether to also write to stderr (default: true).
	WriteToStderr bool
}

// DefaultConfig returns sensible defaults for file logging.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		Format:        "json",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// Setup initializes logging and returns the logger plus a cleanup function
// that closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var output io.Writer = os.Stderr
	cleanup := func() {}

	if cfg.FilePath != "" {
		writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}

		output = writer
		if cfg.WriteToStderr {
			output = io.MultiWriter(writer, os.Stderr)
		}

		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}

	level := parseLevel(cfg.Level)

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler), cleanup, nil
}

// SetupMCPMode initializes logging for MCP server mode: file only, never
// stdout or stderr. Stdout carries the JSON-RPC stream; any stray write
// corrupts the protocol.
func SetupMCPMode() (func(), error) {
	if err := EnsureLogDir(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("mcp mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}

// Component returns a child logger tagged with a component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", name))
}

// RequestID generates a short random hex identifier for request tracing.
func RequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString converts string level to slog.Level.
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}
