package middleware

import (
	"github.com/ErlanBelekov/devlife/internal/requestid"
	"github.com/gin-gonic/gin"
)

// RequestID propagates a sane inbound X-Request-ID or mints a new one, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestid.Sanitize(c.GetHeader(requestid.Header))

		ctx := requestid.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestid.Header, id)
		c.Next()
	}
}
