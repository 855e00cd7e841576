package files

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/services/content"
	"github.com/sirupsen/logrus"
)

type importRequest struct {
	SourcePath   string `json:"sourcePath"`
	TargetFolder string `json:"targetFolder"`
}

type exportRequest struct {
	SourceFolder string `json:"sourceFolder"`
	TargetPath   string `json:"targetPath"`
}

// Import godoc
// @Summary Import from a server path
// @Description Copies a server directory or file (inside the configured transfer roots) into the uploads root
// @Tags Transfer
// @Accept json
// @Produce json
// @Param request body importRequest true "Import request"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	requestID := c.GetString("request_id")
	started := time.Now()

	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SourcePath == "" {
		badRequest(c, "sourcePath is required")
		return
	}
	target := strings.Trim(req.TargetFolder, "/")

	release, ok := h.withLock(c, target)
	if !ok {
		return
	}
	defer release()

	result, err := h.transfer.Import(c.Request.Context(), req.SourcePath, target)
	if err != nil {
		handleStorageError(c, err, h.logger, requestID)
		return
	}
	h.journalTree(c, result, req.SourcePath, target, started)

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"source":     req.SourcePath,
		"target":     target,
		"copied":     result.ItemsProcessed,
		"errors":     len(result.Errors),
	}).Info("Import completed")

	writeTreeResult(c, result, fmt.Sprintf("%d item(s) imported", result.ItemsProcessed), gin.H{
		"copied": result.ItemsProcessed,
	})
}

// Export godoc
// @Summary Export to a server path
// @Description Copies a folder to a server path inside the configured transfer roots. Empty folders are refused.
// @Tags Transfer
// @Accept json
// @Produce json
// @Param request body exportRequest true "Export request"
// @Success 200 {object} content.ExportResult
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/export [post]
func (h *Handler) Export(c *gin.Context) {
	requestID := c.GetString("request_id")
	started := time.Now()

	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SourceFolder == "" || req.TargetPath == "" {
		badRequest(c, "sourceFolder and targetPath are required")
		return
	}
	source := strings.Trim(req.SourceFolder, "/")

	release, ok := h.withLock(c, source)
	if !ok {
		return
	}
	defer release()

	result, err := h.transfer.Export(c.Request.Context(), source, req.TargetPath)
	if err != nil {
		handleStorageError(c, err, h.logger, requestID)
		return
	}
	h.journalOp(c, content.OpExport, source, req.TargetPath, result.Copied, result.Errors, result.Success, started)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{
		"success":            result.Success,
		"message":            fmt.Sprintf("%d file(s) exported", result.Copied),
		"copied":             result.Copied,
		"totalSize":          result.TotalSize,
		"totalSizeFormatted": result.TotalSizeFormatted,
		"errors":             result.Errors,
		"request_id":         requestID,
	})
}
