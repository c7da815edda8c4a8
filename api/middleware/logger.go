package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/mediabridge-go/pkg/logger"
	"go.uber.org/zap"
)

// Logger returns a gin middleware for logging
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// AccessLogger writes one access-category line per request and copies
// server-side failures into the error category
func AccessLogger(ml *logger.MultiLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if provider := c.Writer.Header().Get("X-Tool-Used"); provider != "" {
			fields = append(fields, zap.String("provider", provider))
		}
		ml.Access().Info("HTTP request", fields...)

		if statusCode >= 500 {
			ml.LogAppError("HTTP error response",
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.Int("status", statusCode),
				zap.String("client_ip", c.ClientIP()),
			)
		}
	}
}
