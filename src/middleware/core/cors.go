package core

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/config"
	"github.com/sirupsen/logrus"
)

const allowHeaders = "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID, X-Blob-Token"

// CORS allows credentialed requests from the configured API origins only.
func CORS(cfg *config.Config, logger *logrus.Logger) gin.HandlerFunc {
	allowedOrigins := cfg.CORSOrigins

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && isOriginAllowed(origin, allowedOrigins) {
			headers := allowHeaders
			if reqHeaders := c.Request.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				headers = headers + ", " + reqHeaders
			}
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", headers)
			c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
			c.Header("Access-Control-Max-Age", "86400")
			c.Header("Vary", "Origin")
		} else if origin != "" && !isPublicPath(c.Request.URL.Path) {
			logger.WithFields(logrus.Fields{
				"origin":     origin,
				"ip":         c.ClientIP(),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"request_id": c.GetString("request_id"),
			}).Warn("CORS: Rejected origin not in whitelist")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// PublicCORS is used on file display routes. Without an allow-list every
// origin may embed stored files; with one, only listed origins get the
// header.
func PublicCORS(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(origins) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin := c.Request.Header.Get("Origin"); origin != "" && isOriginAllowed(origin, origins) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		c.Next()
	}
}

func isOriginAllowed(origin string, allowedOrigins []string) bool {
	// Empty whitelist = deny all
	for _, allowed := range allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func isPublicPath(p string) bool {
	return strings.HasPrefix(p, "/uploads/") || strings.HasPrefix(p, "/api/display/")
}
