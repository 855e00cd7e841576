package logic

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/config"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
)

// RequireScope authenticates the request against the configured
// authenticator. Tokens are read from "Authorization: Bearer"; username and
// password from HTTP Basic. GET requests may also pass ?token= for clients
// that cannot set headers (image tags, download links).
func RequireScope(authn security.Authenticator, scope security.Scope, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")

		err := authn.Authenticate(credentialsFrom(c), scope)
		if err == nil {
			c.Set("auth_scope", scope.String())
			c.Next()
			return
		}

		status := http.StatusUnauthorized
		code := "unauthorized"
		message := "valid credentials are required"
		if errors.Is(err, security.ErrInsufficientScope) {
			status = http.StatusForbidden
			code = "insufficient_scope"
			message = "credentials do not allow " + scope.String() + " access"
		}

		logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"scope":      scope.String(),
			"ip":         c.ClientIP(),
			"path":       c.Request.URL.Path,
		}).Warn("auth: request rejected")

		if status == http.StatusUnauthorized {
			if authn.Mode() == config.AuthModePassword {
				c.Header("WWW-Authenticate", `Basic realm="uploads"`)
			} else {
				c.Header("WWW-Authenticate", `Bearer realm="uploads"`)
			}
		}
		c.AbortWithStatusJSON(status, gin.H{
			"error": gin.H{
				"code":       code,
				"message":    message,
				"request_id": requestID,
			},
		})
	}
}

func credentialsFrom(c *gin.Context) security.Credentials {
	var creds security.Credentials

	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		creds.Token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if user, pass, ok := c.Request.BasicAuth(); ok {
		creds.Username = user
		creds.Password = pass
	}
	if creds.Token == "" && c.Request.Method == http.MethodGet {
		creds.Token = c.Query("token")
	}
	return creds
}
