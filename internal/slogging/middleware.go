package slogging

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware returns a Gin middleware for logging requests using slog
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := Get().WithContext(c)
		c.Set("logger", logger)

		start := time.Now()
		c.Next()

		userID, hasUser := c.Get("userID")
		if Get().suppressUnauthenticatedLogs && (!hasUser || userID == "") {
			return
		}

		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status_code", status),
			slog.Duration("duration", time.Since(start)),
			slog.Int("response_size", c.Writer.Size()),
		}

		switch {
		case status >= 500:
			logger.ErrorCtx("Request completed with server error", attrs...)
		case status >= 400:
			logger.WarnCtx("Request completed with client error", attrs...)
		default:
			logger.InfoCtx("Request completed successfully", attrs...)
		}
	}
}

// Recoverer creates middleware for recovering from panics using slog
func Recoverer() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				value, _ := c.Get("logger")
				logger, ok := value.(*ContextLogger)
				if !ok {
					logger = Get().WithContext(c)
				}

				buf := make([]byte, 2048)
				n := runtime.Stack(buf, false)

				logger.ErrorCtx("Panic recovered",
					slog.Any("panic_value", err),
					slog.String("stack_trace", string(buf[:n])),
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}
