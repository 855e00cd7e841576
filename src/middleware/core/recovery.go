package core

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PanicRecovery turns a panicking handler into a 500 with the usual error
// envelope instead of a dropped connection.
func PanicRecovery(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID := c.GetString("request_id")
				logger.WithFields(logrus.Fields{
					"request_id": requestID,
					"panic":      rec,
					"method":     c.Request.Method,
					"path":       c.Request.URL.Path,
					"stack":      string(debug.Stack()),
				}).Error("panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{
						"code":       "internal_error",
						"message":    "internal server error",
						"request_id": requestID,
					},
				})
			}
		}()
		c.Next()
	}
}
