package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
	"go.uber.org/zap"
)

// quietPaths are polled by monitors and only logged when they fail
var quietPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// LoggerWithAdapter logs every request to the console logger and sends 5xx
// responses to the error category as well
func LoggerWithAdapter(logAdapter *logger.LoggerAdapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		if quietPaths[path] && status < 400 {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logAdapter.LogError("HTTP error response", fields...)
		case status >= 400:
			logAdapter.Base().Warn("HTTP client error", fields...)
		default:
			logAdapter.Base().Info("HTTP request", fields...)
		}
	}
}
