package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/guttosm/firdspulse/internal/logger"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID tags every request with an identifier.
//
// Behavior:
//   - Reuses an incoming X-Request-ID when it is short and made of safe characters.
//   - Otherwise generates a UUID v4.
//   - Stores it under "request_id" and echoes it in the X-Request-ID response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLog returns the global logger annotated with the request id, if any.
func RequestLog(c *gin.Context) zerolog.Logger {
	l := logger.L().With()
	if rid := c.GetString(RequestIDKey); rid != "" {
		l = l.Str("request_id", rid)
	}
	return l.Logger()
}
