package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header names the request id header honoured and echoed by the middleware.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware propagates the caller's request id, minting a fresh uuid when
// the header is absent, and echoes it on the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)

		c.Next()
	}
}

// Value returns the request id stored in the Gin context, or "" when the
// middleware did not run.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
