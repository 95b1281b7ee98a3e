package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CORS returns the cors middleware. With no origins every origin is
// allowed, which the passthrough proxy needs for browser clients.
func CORS(origins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	config.AllowMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Range"}
	config.ExposeHeaders = []string{"Content-Disposition", "Content-Length", "X-Tracks-Succeeded", "X-Tracks-Failed"}
	return cors.New(config)
}

// RequestLogger logs each request with zap. Health checks are skipped.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/health") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, zap.String("error", errs.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request failed", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
