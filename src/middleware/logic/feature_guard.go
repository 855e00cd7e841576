package logic

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// FeatureGuard rejects requests to optional features that are switched off
// by configuration, before any body parsing happens.
func FeatureGuard(enabled func() bool, code, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": gin.H{
					"code":       code,
					"message":    message,
					"request_id": c.GetString("request_id"),
				},
			})
			return
		}
		c.Next()
	}
}
