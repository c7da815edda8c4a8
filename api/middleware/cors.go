package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// ExposedHeaders are the response headers browsers may read from binary responses
var ExposedHeaders = []string{
	"Content-Length", "Content-Disposition",
	"X-File-Size", "X-Tool-Used", "X-Format", "X-Processing-Time-Ms", "X-Acquisition-Id",
}

// CORS allows the configured origins; an empty list or "*" allows any origin
func CORS(allowedOrigins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: ExposedHeaders,
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || containsWildcard(allowedOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	return cors.New(config)
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
