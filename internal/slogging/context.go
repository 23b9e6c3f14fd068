package slogging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// GinContextLike defines a minimal interface for contexts that can be used with the logger
type GinContextLike interface {
	Get(key any) (any, bool)
	GetHeader(key string) string
	ClientIP() string
}

// WithContext returns a request-scoped logger carrying request id, client ip and user id
func (l *Logger) WithContext(c GinContextLike) *ContextLogger {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
		if setter, ok := c.(interface{ Header(string, string) }); ok {
			setter.Header("X-Request-ID", requestID)
		}
	}

	userID := ""
	if v, ok := c.Get("userID"); ok {
		userID = fmt.Sprintf("%v", v)
	}

	return &ContextLogger{
		logger: l,
		slogger: l.slogger.With(
			slog.String("request_id", requestID),
			slog.String("client_ip", c.ClientIP()),
			slog.String("user_id", userID),
		),
		requestID: requestID,
	}
}

// WithConnection returns a logger bound to one websocket connection
func (l *Logger) WithConnection(connID, userID string) *ContextLogger {
	return &ContextLogger{
		logger: l,
		slogger: l.slogger.With(
			slog.String("conn_id", connID),
			slog.String("user_id", userID),
		),
	}
}

// ContextLogger adds request or connection attributes to every record
type ContextLogger struct {
	logger    *Logger
	slogger   *slog.Logger
	requestID string
}

func (cl *ContextLogger) logf(threshold LogLevel, level slog.Level, format string, args ...any) {
	if cl.logger.level > threshold {
		return
	}
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	cl.slogger.Log(context.Background(), level, SanitizeLogMessage(message))
}

// Debug logs a debug message with context
func (cl *ContextLogger) Debug(format string, args ...any) {
	cl.logf(LogLevelDebug, slog.LevelDebug, format, args...)
}

// Info logs an info message with context
func (cl *ContextLogger) Info(format string, args ...any) {
	cl.logf(LogLevelInfo, slog.LevelInfo, format, args...)
}

// Warn logs a warning message with context
func (cl *ContextLogger) Warn(format string, args ...any) {
	cl.logf(LogLevelWarn, slog.LevelWarn, format, args...)
}

// Error logs an error message with context
func (cl *ContextLogger) Error(format string, args ...any) {
	cl.logf(LogLevelError, slog.LevelError, format, args...)
}

// DebugCtx logs a structured debug message
func (cl *ContextLogger) DebugCtx(msg string, attrs ...slog.Attr) {
	cl.slogger.LogAttrs(context.Background(), slog.LevelDebug, SanitizeLogMessage(msg), attrs...)
}

// InfoCtx logs a structured info message
func (cl *ContextLogger) InfoCtx(msg string, attrs ...slog.Attr) {
	cl.slogger.LogAttrs(context.Background(), slog.LevelInfo, SanitizeLogMessage(msg), attrs...)
}

// WarnCtx logs a structured warning message
func (cl *ContextLogger) WarnCtx(msg string, attrs ...slog.Attr) {
	cl.slogger.LogAttrs(context.Background(), slog.LevelWarn, SanitizeLogMessage(msg), attrs...)
}

// ErrorCtx logs a structured error message
func (cl *ContextLogger) ErrorCtx(msg string, attrs ...slog.Attr) {
	cl.slogger.LogAttrs(context.Background(), slog.LevelError, SanitizeLogMessage(msg), attrs...)
}

// RequestID returns the request id bound to this logger, if any
func (cl *ContextLogger) RequestID() string {
	return cl.requestID
}
