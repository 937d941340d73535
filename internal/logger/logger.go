// Package logger is the process-wide slog setup. Components log through
// ForComponent so every line carries component= and, inside a request,
// request_id=.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is a type for context keys used by the logger
type ContextKey string

// RequestIDKey is the context key the request id middleware stores under.
const RequestIDKey ContextKey = "request_id"

var defaultLogger *slog.Logger

// Init installs the default logger writing to stdout.
func Init(levelStr string) {
	InitWithWriter(levelStr, os.Stdout)
}

// InitWithWriter is Init with an explicit destination. ENV=production
// switches to JSON lines.
func InitWithWriter(levelStr string, w io.Writer) {
	opts := &slog.HandlerOptions{Level: parseLevel(levelStr)}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if os.Getenv("ENV") == "production" {
		handler = slog.NewJSONHandler(w, opts)
	}
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// parseLevel accepts slog level names plus "warning"; unknown input is info.
func parseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Get returns the default logger, installing an info-level one if needed.
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init("info")
	}
	return defaultLogger
}

func withRequestID(ctx context.Context, l *slog.Logger) *slog.Logger {
	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return l.With("request_id", id)
	}
	return l
}

// WithComponent returns a logger with a component label
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

// ForComponent is WithComponent plus the request ID carried by ctx, if any.
func ForComponent(ctx context.Context, component string) *slog.Logger {
	return withRequestID(ctx, WithComponent(component))
}

func Debug(msg string, args ...any) { Get().Debug(msg, args...) }
func Info(msg string, args ...any)  { Get().Info(msg, args...) }
func Warn(msg string, args ...any)  { Get().Warn(msg, args...) }
func Error(msg string, args ...any) { Get().Error(msg, args...) }

// WarnContext logs at warn with the request id from ctx.
func WarnContext(ctx context.Context, msg string, args ...any) {
	withRequestID(ctx, Get()).Warn(msg, args...)
}

// ErrorContext logs at error with the request id from ctx.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	withRequestID(ctx, Get()).Error(msg, args...)
}
