package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/mediabridge-go/pkg/logger"
	"go.uber.org/zap"
)

// Recovery returns a gin middleware for panic recovery
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return recoverWith(func(c *gin.Context, err interface{}) {
		log.Error("Panic recovered",
			zap.Any("error", err),
			zap.String("path", c.Request.URL.Path),
		)
	})
}

// RecoveryWithMultiLogger recovers panics and records them in the error category
func RecoveryWithMultiLogger(ml *logger.MultiLogger) gin.HandlerFunc {
	return recoverWith(func(c *gin.Context, err interface{}) {
		ml.LogAppError("Panic recovered",
			zap.Any("error", err),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.String("client_ip", c.ClientIP()),
		)
	})
}

func recoverWith(report func(*gin.Context, interface{})) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				report(c, err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
