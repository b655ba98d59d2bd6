package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	logger   *slog.Logger
	loggerMu sync.RWMutex
	logFile  *os.File
)

type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// Config selects where engine logs go and how verbose they are.
type Config struct {
	Level      LogLevel
	OutputPath string // empty means stderr
	Format     string // "json" or "text"
}

// Init installs the process-wide logger. Calling it again replaces the previous
// logger and closes its file, if any.
func Init(config Config) error {
	var writer io.Writer = os.Stderr
	var file *os.File

	if config.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0o750); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", config.OutputPath, err)
		}
		writer = f
		file = f
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(string(config.Level))}
	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logger = slog.New(handler)
	logFile = file
	return nil
}

// InitDefault logs text at the level named by BTREE_LOG_LEVEL (INFO when unset) to stderr.
func InitDefault() error {
	return Init(Config{
		Level:  LogLevel(os.Getenv("BTREE_LOG_LEVEL")),
		Format: "text",
	})
}

// ParseLevel maps a level name to a slog level, defaulting to INFO.
func ParseLevel(name string) slog.Level {
	switch LogLevel(strings.ToUpper(name)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Close releases the log file. The next GetLogger call falls back to defaults.
func Close() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	var err error
	if logFile != nil {
		err = logFile.Close()
		logFile = nil
	}
	logger = nil
	return err
}

// GetLogger returns the process-wide logger, creating a WARN-level text logger
// on stderr when Init was never called.
func GetLogger() *slog.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return logger
}

// Component returns a child logger tagged with the engine layer that emits it.
func Component(name string) *slog.Logger {
	return GetLogger().With("component", name)
}
