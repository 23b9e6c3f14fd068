package slogging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents logging verbosity
type LogLevel int

const (
	// LogLevelDebug includes detailed debug information
	LogLevelDebug LogLevel = iota
	// LogLevelInfo includes general request information
	LogLevelInfo
	// LogLevelWarn includes warnings and errors only
	LogLevelWarn
	// LogLevelError includes only errors
	LogLevelError
)

var (
	globalLogger  *Logger
	defaultLogDir = "logs"
)

// SimpleLogger defines the basic printf-style logging interface used across the app
type SimpleLogger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Logger is the slog-based logging component
type Logger struct {
	slogger                     *slog.Logger
	level                       LogLevel
	isDev                       bool
	fileLogger                  *lumberjack.Logger
	suppressUnauthenticatedLogs bool
}

// Config holds configuration options for the logger
type Config struct {
	// Level is the minimum log level to output
	Level LogLevel
	// IsDev selects the text handler and adds file/line info
	IsDev bool
	// LogDir is the directory to store log files
	LogDir string
	// LogFile is the file name inside LogDir (default eventchat.log)
	LogFile string
	// MaxAgeDays is the maximum number of days to retain logs
	MaxAgeDays int
	// MaxSizeMB is the maximum size of a log file in MB before rotation
	MaxSizeMB int
	// MaxBackups is the maximum number of old log files to retain
	MaxBackups int
	// AlsoLogToConsole controls if logs also go to stdout
	AlsoLogToConsole bool
	// SuppressUnauthenticatedLogs controls whether to log requests without authenticated users
	SuppressUnauthenticatedLogs bool
	// RedactionConfig controls sensitive data redaction (uses defaults if nil)
	RedactionConfig *RedactionConfig
	// Output replaces the file/console writers entirely when set. Used by tests.
	Output io.Writer
}

// ParseLogLevel converts a string log level to LogLevel
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) toSlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// sourceHandler adds file:line to records in dev mode
type sourceHandler struct {
	handler slog.Handler
	isDev   bool
}

func (h *sourceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *sourceHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.isDev {
		if record.PC == 0 {
			if _, file, line, ok := runtime.Caller(4); ok {
				record.Add(slog.String("source", fmt.Sprintf("%s:%d", filepath.Base(file), line)))
			}
		} else {
			frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
			record.Add(slog.String("source", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)))
		}
	}
	return h.handler.Handle(ctx, record)
}

func (h *sourceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sourceHandler{handler: h.handler.WithAttrs(attrs), isDev: h.isDev}
}

func (h *sourceHandler) WithGroup(name string) slog.Handler {
	return &sourceHandler{handler: h.handler.WithGroup(name), isDev: h.isDev}
}

// NewLogger creates a new slog-based logger instance
func NewLogger(config Config) (*Logger, error) {
	if config.LogDir == "" {
		config.LogDir = defaultLogDir
	}
	if config.LogFile == "" {
		config.LogFile = "eventchat.log"
	}
	if config.MaxAgeDays <= 0 {
		config.MaxAgeDays = 7
	}
	if config.MaxSizeMB <= 0 {
		config.MaxSizeMB = 100
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = 10
	}

	var (
		writer     io.Writer
		fileLogger *lumberjack.Logger
	)
	if config.Output != nil {
		writer = config.Output
	} else {
		if err := os.MkdirAll(config.LogDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		fileLogger = &lumberjack.Logger{
			Filename:   filepath.Join(config.LogDir, config.LogFile),
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   true,
		}
		if config.AlsoLogToConsole {
			writer = io.MultiWriter(os.Stdout, fileLogger)
		} else {
			writer = fileLogger
		}
	}

	handlerOpts := &slog.HandlerOptions{
		Level: config.Level.toSlogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if config.IsDev {
		handler = slog.NewTextHandler(writer, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	}

	redactionConfig := DefaultRedactionConfig()
	if config.RedactionConfig != nil {
		redactionConfig = *config.RedactionConfig
	}
	redactionHandler, err := NewRedactionHandler(handler, redactionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create redaction handler: %w", err)
	}

	return &Logger{
		slogger:                     slog.New(&sourceHandler{handler: redactionHandler, isDev: config.IsDev}),
		level:                       config.Level,
		isDev:                       config.IsDev,
		fileLogger:                  fileLogger,
		suppressUnauthenticatedLogs: config.SuppressUnauthenticatedLogs,
	}, nil
}

// Initialize sets up the global logger
func Initialize(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return err
	}
	globalLogger = logger
	slog.SetDefault(logger.slogger)
	return nil
}

// Get returns the global logger instance, initializing with defaults if needed
func Get() *Logger {
	if globalLogger == nil {
		logDir := os.Getenv("EVENTCHAT_LOG_DIR")
		if logDir == "" {
			logDir = defaultLogDir
		}
		err := Initialize(Config{
			Level:            LogLevelInfo,
			LogDir:           logDir,
			MaxAgeDays:       7,
			AlsoLogToConsole: true,
		})
		if err != nil {
			handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
			globalLogger = &Logger{
				slogger: slog.New(handler),
				level:   LogLevelInfo,
			}
		}
	}
	return globalLogger
}

// Close flushes and closes the rotating file writer
func (l *Logger) Close() error {
	if l.fileLogger != nil {
		if err := l.fileLogger.Close(); err != nil {
			return fmt.Errorf("file logger close: %w", err)
		}
	}
	return nil
}

// Level returns the configured minimum level
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) logf(threshold LogLevel, level slog.Level, format string, args ...any) {
	if l.level > threshold {
		return
	}
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	// Sanitize to prevent log injection (CWE-117)
	l.slogger.Log(context.Background(), level, SanitizeLogMessage(message))
}

// Debug logs a debug-level message
func (l *Logger) Debug(format string, args ...any) {
	l.logf(LogLevelDebug, slog.LevelDebug, format, args...)
}

// Info logs an info-level message
func (l *Logger) Info(format string, args ...any) {
	l.logf(LogLevelInfo, slog.LevelInfo, format, args...)
}

// Warn logs a warning-level message
func (l *Logger) Warn(format string, args ...any) {
	l.logf(LogLevelWarn, slog.LevelWarn, format, args...)
}

// Error logs an error-level message
func (l *Logger) Error(format string, args ...any) {
	l.logf(LogLevelError, slog.LevelError, format, args...)
}

// DebugCtx logs a debug message with context and structured attributes
func (l *Logger) DebugCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelDebug, SanitizeLogMessage(msg), attrs...)
}

// InfoCtx logs an info message with context and structured attributes
func (l *Logger) InfoCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelInfo, SanitizeLogMessage(msg), attrs...)
}

// WarnCtx logs a warning message with context and structured attributes
func (l *Logger) WarnCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelWarn, SanitizeLogMessage(msg), attrs...)
}

// ErrorCtx logs an error message with context and structured attributes
func (l *Logger) ErrorCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelError, SanitizeLogMessage(msg), attrs...)
}

// GetSlogger returns the underlying slog.Logger for advanced usage
func (l *Logger) GetSlogger() *slog.Logger {
	return l.slogger
}
