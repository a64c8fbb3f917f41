package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SyncAuthMiddleware creates a Gin middleware that validates the X-Sync-Key
// header against the configured synchronization API key. The sync endpoints
// are machine-to-machine, so failures are terse and constant-time.
func SyncAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": gin.H{"code": "SYNC_NOT_CONFIGURED", "message": "Sync endpoints are not configured"}})
			return
		}
		key := c.GetHeader("X-Sync-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "INVALID_SYNC_KEY", "message": "Invalid or missing sync key"}})
			return
		}
		c.Next()
	}
}
