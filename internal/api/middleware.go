package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/retronews/retronews/internal/logger"
	"github.com/retronews/retronews/internal/metrics"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key for the request ID.
const requestIDKey = "request_id"

// requestIDMiddleware assigns every request a correlation ID, honoring one
// supplied by the client.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// statsMiddleware counts every served request; 5xx responses count as
// errors.
func statsMiddleware(stats *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		stats.RecordRequest(c.Writer.Status() < 500)
	}
}

// loggingMiddleware logs one line per request with latency and status.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		)
	}
}
