// internal/api/router.go
package api

import (
	"net/http"

	"sped-service/internal/api/handlers"
	"sped-service/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

// RouterOptions configures the HTTP surface.
type RouterOptions struct {
	JWTSecret      []byte
	MaxUploadBytes int64
}

// NewRouter wires the SPED endpoints under /api/v1 plus the health check.
func NewRouter(h *handlers.SpedHandler, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = opts.MaxUploadBytes
	}

	apiV1 := router.Group("/api/v1", middleware.LimitBody(opts.MaxUploadBytes), middleware.RequireJWT(opts.JWTSecret))
	{
		apiV1.POST("/sped/generate", h.HandleGenerate)
		apiV1.POST("/sped/download", h.HandleDownload)
		apiV1.POST("/sped/reconciliation", h.HandleReconciliation)
		apiV1.POST("/sped/verify", h.HandleVerify)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "service": "sped-service"})
	})
	return router
}
