package log

import (
	"context"
	"log/slog"
	"net/http"

	"caja/internal/core"
)

type ContextKey string

const (
	LoggerContextKey ContextKey = "logger"
)

// Middleware puts logger into every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext returns the request logger, or one over slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// RequestIDMiddleware adds the request id to the context logger.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger emits the standard request and ledger log lines.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd logs request completion; 4xx at warn, 5xx at error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)

	sl.logger.WithComponent(ComponentHTTP).LogContext(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogCommit is the one line every committed ledger mutation produces.
func (sl *StructuredLogger) LogCommit(ctx context.Context, op string, actor core.Actor, groupID int64, amount core.Money) {
	fields := NewFields().
		WithOperation(op).
		WithActor(actor).
		WithLedger(groupID, amount)
	sl.logger.WithComponent(ComponentLedger).InfoContext(ctx, "Ledger operation committed", fields.ToSlice()...)
}

// LogFailure logs a rejected mutation. Caller errors go out at warn;
// contention and internal failures at error.
func (sl *StructuredLogger) LogFailure(ctx context.Context, op string, actor core.Actor, err error) {
	level := slog.LevelWarn
	if kind := core.KindOf(err); kind == core.KindInternal || kind == core.KindContention {
		level = slog.LevelError
	}
	fields := NewFields().
		WithOperation(op).
		WithActor(actor).
		WithError(err)
	sl.logger.WithComponent(ComponentLedger).LogContext(ctx, level, "Ledger operation failed", fields.ToSlice()...)
}
