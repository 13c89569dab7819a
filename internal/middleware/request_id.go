package middleware

import (
	"crypto/rand"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

const (
	ContextRequestIDKey = "request_id"
	requestIDHeader     = "X-Request-Id"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = ulid.MustNew(ulid.Now(), rand.Reader).String()
		}
		c.Set(ContextRequestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}
