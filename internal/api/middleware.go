package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/youruser/thumbapp/internal/observability"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestID tags every request with an id, reusing a sane inbound one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithRequest(c.GetString(requestIDKey)).
			HTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

// cors allows a single configured browser origin.
func cors(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin != "" && (origin == "*" || c.GetHeader("Origin") == origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
			c.Header("Access-Control-Expose-Headers", requestIDHeader)
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
