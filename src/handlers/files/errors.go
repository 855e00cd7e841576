package files

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	domain "github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/services/content"
	"github.com/sirupsen/logrus"
)

// handleStorageError maps service errors to the HTTP error envelope. The
// error classes in domain/files decide the status; the message of the
// innermost sentinel is passed through to the client.
func handleStorageError(c *gin.Context, err error, logger *logrus.Logger, requestID string) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "storage operation failed"

	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code, message = http.StatusBadRequest, "validation_error", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, domain.ErrConflict):
		status, code, message = http.StatusConflict, "conflict", err.Error()
	case errors.Is(err, domain.ErrForbidden):
		status, code, message = http.StatusForbidden, "forbidden", err.Error()
	case errors.Is(err, domain.ErrUpstream):
		status, code, message = http.StatusBadGateway, "upstream_error", err.Error()
	case errors.Is(err, content.ErrLockTimeout):
		status, code, message = http.StatusConflict, "locked", "another operation on this folder is in progress"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusServiceUnavailable, "cancelled", "request cancelled"
	}

	fields := logrus.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"status":     status,
		"path":       c.Request.URL.Path,
	}
	if status >= http.StatusInternalServerError {
		logger.WithFields(fields).Error("storage: request failed")
	} else {
		logger.WithFields(fields).Warn("storage: request failed")
	}

	body := gin.H{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	}
	var batchErr *content.BatchValidationError
	if errors.As(err, &batchErr) {
		body["files"] = batchErr.Rejections
	}

	c.JSON(status, gin.H{"error": body})
}

// badRequest answers a malformed request body.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": gin.H{
			"code":       "invalid_request",
			"message":    message,
			"request_id": c.GetString("request_id"),
		},
	})
}
