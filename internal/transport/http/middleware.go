package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/b3hniya/tenderd-fms-sub000/internal/auth"
)

// APIKeyAuth guards the ingest routes. Devices authenticate with an
// X-API-Key header resolved through static config, a local cache, then
// Redis.
func APIKeyAuth(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-API-Key header"})
			return
		}
		if !a.Validate(c.Request.Context(), apiKey) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}
		c.Next()
	}
}
