// Package logging provides structured logging for FinTrack.
//
// Every logger built here sits on top of a redacting handler, so webhook
// URLs and other credentials passed as attributes never reach the output
// in full. Text output is the default; debug mode switches to JSON with
// source locations.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	defaultLogger *slog.Logger
	loggerMu      sync.RWMutex

	// Debug indicates if debug mode is enabled.
	Debug bool
)

func init() {
	Init(DefaultConfig())
}

// Config holds logger configuration.
type Config struct {
	Level     slog.Level // Minimum log level
	JSON      bool       // Use JSON output format
	Output    io.Writer  // Output destination (default: stderr)
	AddSource bool       // Include source file and line number
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Output: os.Stderr,
	}
}

// DebugConfig returns a configuration suitable for debug mode.
func DebugConfig() Config {
	return Config{
		Level:     slog.LevelDebug,
		JSON:      true,
		Output:    os.Stderr,
		AddSource: true,
	}
}

// Init replaces the global logger.
func Init(cfg Config) {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = slog.New(&maskingHandler{next: handler})
	Debug = cfg.Level <= slog.LevelDebug
}

// InitDebug initializes the logger in debug mode with JSON output.
func InitDebug() {
	Init(DebugConfig())
}

// Logger returns the current logger instance.
func Logger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return defaultLogger
}

// DebugLog logs at DEBUG level.
func DebugLog(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Common structured logging fields.
const (
	KeyComponent      = "component"
	KeyOperation      = "op"
	KeyDuration       = "duration_ms"
	KeyError          = "error"
	KeyTransactionID  = "tx_id"
	KeyMonthKey       = "month_key"
	KeySettingKey     = "setting"
	KeyNotificationID = "notification_id"
	KeyWebhook        = "webhook"
	KeyStatus         = "status"
	KeyCount          = "count"
	KeyNextFire       = "next_fire"
)

// Component returns a logger tagged with the given component name.
func Component(name string) *slog.Logger {
	return Logger().With(KeyComponent, name)
}

// LogOperation logs an operation and how long it took.
// Usage: defer LogOperation("boot", time.Now())
func LogOperation(op string, start time.Time, args ...any) {
	allArgs := append([]any{KeyOperation, op, KeyDuration, time.Since(start).Milliseconds()}, args...)
	Logger().Debug("operation", allArgs...)
}
