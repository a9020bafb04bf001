package size

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultLimit caps API request bodies.
const DefaultLimit int64 = 1 << 20

// BodySizeLimiter limits the request body size for the route group. A
// non-positive limit uses DefaultLimit.
func BodySizeLimiter(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
