package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ctxLoggerKey    = "logger"
)

// Middleware tags every request with a request id and logs a summary line
// once the handler chain finishes. The id is echoed back to the caller and
// carried on the request-scoped logger so webhook handlers can correlate
// provider callbacks with their log lines.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		c.Set(ctxLoggerKey, reqLogger)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"client_ip", c.ClientIP(),
			"duration_ms", float64(time.Since(start).Milliseconds()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500 || len(c.Errors) > 0:
			reqLogger.Error("request", attrs...)
		case status >= 400:
			reqLogger.Warn("request", attrs...)
		default:
			reqLogger.Info("request", attrs...)
		}
	}
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ctxLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
