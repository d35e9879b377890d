// internal/logger/logger.go
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

var (
	defaultLogger *slog.Logger
	logLevel      *slog.LevelVar
	initMu        sync.Mutex
	logOutput     io.Writer = io.Discard
)

// debugFilter prints filter decisions to stderr. Only useful when working on the handler itself.
var debugFilter = false

// SetDebugFilter toggles diagnostic output of the filtering handler.
func SetDebugFilter(enabled bool) {
	debugFilter = enabled
}

// Init initializes the package logger from cfg, writing to output.
// A nil output discards everything. Calling Init again replaces the logger.
func Init(cfg Config, output io.Writer) {
	initMu.Lock()
	defer initMu.Unlock()

	if output == nil {
		output = io.Discard
	}
	cfg.process()
	logOutput = output
	logLevel = new(slog.LevelVar)
	logLevel.Set(cfg.level.Level())

	opts := slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if source, ok := a.Value.Any().(*slog.Source); ok && source != nil {
					source.File = filepath.Base(source.File)
				}
			}
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.TimeOnly))
			}
			return a
		},
	}
	base := slog.NewTextHandler(output, &opts)
	defaultLogger = slog.New(newFilteringHandler(base, &cfg))

	// PC=0: the init record carries no source and bypasses package filters.
	r := slog.NewRecord(time.Now(), slog.LevelInfo, "Logger initialized", 0)
	r.AddAttrs(slog.String("level", cfg.level.Level().String()))
	_ = base.Handle(context.Background(), r)
}

// OpenOutput resolves a log file path to a writer. Empty or "-" means stderr.
// The returned close func is always non-nil.
func OpenOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stderr, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file '%s': %w", path, err)
	}
	return f, f.Close, nil
}

func ensureInitialized() {
	initMu.Lock()
	defer initMu.Unlock()
	if defaultLogger != nil {
		return
	}
	logLevel = new(slog.LevelVar)
	logLevel.Set(slog.LevelInfo)
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: logLevel}))
}

// SetLevel changes the minimum level at runtime.
func SetLevel(level slog.Level) {
	ensureInitialized()
	logLevel.Set(level)
}

// logAtLevel creates and logs a record at the given level with the caller's source.
func logAtLevel(level slog.Level, tag string, format string, args ...interface{}) {
	ensureInitialized()
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}

	// Skip runtime.Callers, logAtLevel and the exported wrapper.
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), level, fmt.Sprintf(format, args...), pcs[0])
	if tag != "" {
		r.AddAttrs(slog.String(tagKey, tag))
	}
	_ = defaultLogger.Handler().Handle(context.Background(), r)
}

// Debugf logs a debug message using Printf-style formatting.
func Debugf(format string, args ...interface{}) {
	logAtLevel(slog.LevelDebug, "", format, args...)
}

// Infof logs an info message using Printf-style formatting.
func Infof(format string, args ...interface{}) {
	logAtLevel(slog.LevelInfo, "", format, args...)
}

// Warnf logs a warning message using Printf-style formatting.
func Warnf(format string, args ...interface{}) {
	logAtLevel(slog.LevelWarn, "", format, args...)
}

// Errorf logs an error message using Printf-style formatting.
func Errorf(format string, args ...interface{}) {
	logAtLevel(slog.LevelError, "", format, args...)
}

// DebugTagf logs a debug message carrying a tag usable by the tag filters.
func DebugTagf(tag string, format string, args ...interface{}) {
	logAtLevel(slog.LevelDebug, tag, format, args...)
}

// InfoTagf logs a tagged info message.
func InfoTagf(tag string, format string, args ...interface{}) {
	logAtLevel(slog.LevelInfo, tag, format, args...)
}

// WarnTagf logs a tagged warning.
func WarnTagf(tag string, format string, args ...interface{}) {
	logAtLevel(slog.LevelWarn, tag, format, args...)
}

// ErrorTagf logs a tagged error.
func ErrorTagf(tag string, format string, args ...interface{}) {
	logAtLevel(slog.LevelError, tag, format, args...)
}

// Fatalf logs an error message then exits.
func Fatalf(format string, args ...interface{}) {
	logAtLevel(slog.LevelError, "", format, args...)
	os.Exit(1)
}

// Get retrieves the configured logger instance.
func Get() *slog.Logger {
	ensureInitialized()
	return defaultLogger
}
