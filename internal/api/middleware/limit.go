// internal/api/middleware/limit.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LimitBody caps the request body at n bytes.
func LimitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
