package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "requestID"

// LevelTrace is below DEBUG and only used for per-node detail
const LevelTrace = slog.LevelDebug - 4

// Options selects the output format of the global logger.
type Options struct {
	Level  slog.Level
	JSON   bool
	Output io.Writer // Defaults to os.Stderr
}

var logger atomic.Pointer[slog.Logger]

func init() {
	Configure(Options{Level: slog.LevelInfo})
}

// Configure replaces the global logger. It is safe to call while other
// goroutines are logging; loggers returned by New before the call keep the
// previous handler.
func Configure(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = NewCompactHandler(out, hopts)
	}
	logger.Store(slog.New(h))
}

// Logger returns the global logger
func Logger() *slog.Logger {
	return logger.Load()
}

// New returns the global logger tagged with a component name
func New(component string) *slog.Logger {
	return logger.Load().With("component", component)
}

// ParseLevel accepts trace, debug, info, warn and error
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// VerbosityLevel lowers base by one step per -v flag, stopping at TRACE
func VerbosityLevel(base slog.Level, count int) slog.Level {
	level := base - slog.Level(4*count)
	return max(level, LevelTrace)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func withRequestID(ctx context.Context, args []any) []any {
	requestID := GetRequestID(ctx)
	if requestID != "" {
		return append([]any{"requestID", requestID}, args...)
	}
	return args
}

// Trace logs at TRACE level
func Trace(msg string, args ...any) {
	Logger().Log(context.Background(), LevelTrace, msg, args...)
}

// TraceContext logs at TRACE level with context
func TraceContext(ctx context.Context, msg string, args ...any) {
	Logger().Log(ctx, LevelTrace, msg, withRequestID(ctx, args)...)
}

// Debug logs at DEBUG level
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// DebugContext logs at DEBUG level with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	Logger().DebugContext(ctx, msg, withRequestID(ctx, args)...)
}

// Info logs at INFO level
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// InfoContext logs at INFO level with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	Logger().InfoContext(ctx, msg, withRequestID(ctx, args)...)
}

// Warn logs at WARN level
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// WarnContext logs at WARN level with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	Logger().WarnContext(ctx, msg, withRequestID(ctx, args)...)
}

// Error logs at ERROR level
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// ErrorContext logs at ERROR level with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	Logger().ErrorContext(ctx, msg, withRequestID(ctx, args)...)
}

// Fatal logs at ERROR level and exits
func Fatal(msg string, args ...any) {
	Logger().Error(msg, args...)
	os.Exit(1)
}
