package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

const (
	RequestIDHeader   = "X-Request-ID"
	ContextRequestID  = "requestID"
	maxRequestIDBytes = 128
)

// RequestID propagates the caller's X-Request-ID or assigns a fresh ULID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDBytes {
			id = ulid.Make().String()
		}
		c.Set(ContextRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
