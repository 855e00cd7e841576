package files

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/services/content"
	"github.com/sirupsen/logrus"
)

// ImportArchive godoc
// @Summary Import a zip archive
// @Description Extracts a zip into a folder with zip-slip, bomb and size protection; markers are regenerated
// @Tags Archive
// @Accept multipart/form-data
// @Produce json
// @Param folder formData string false "Target folder"
// @Param archive formData file true "Zip archive"
// @Success 200 {object} content.UnzipResult
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/archive/import [post]
func (h *Handler) ImportArchive(c *gin.Context) {
	requestID := c.GetString("request_id")
	started := time.Now()

	fileHeader, err := c.FormFile("archive")
	if err != nil {
		badRequest(c, "archive is required")
		return
	}
	folder := strings.Trim(c.PostForm("folder"), "/")

	src, err := fileHeader.Open()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("archive: open upload failed")
		handleStorageError(c, err, h.logger, requestID)
		return
	}
	defer src.Close()

	release, ok := h.withLock(c, folder)
	if !ok {
		return
	}
	defer release()

	result, err := h.archive.ImportArchive(c.Request.Context(), src, fileHeader.Size, folder)
	if err != nil {
		h.journalOp(c, opArchive, fileHeader.Filename, folder, 0, []string{err.Error()}, false, started)
		handleStorageError(c, err, h.logger, requestID)
		return
	}
	h.journalOp(c, opArchive, fileHeader.Filename, folder, result.FileCount, result.Skipped, true, started)

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        fmt.Sprintf("%d file(s) extracted", result.FileCount),
		"folder":         result.Folder,
		"extractedFiles": result.ExtractedFiles,
		"skipped":        result.Skipped,
		"fileCount":      result.FileCount,
		"totalSize":      result.TotalBytes,
	})
}

// ExportArchiveHandler godoc
// @Summary Download a folder as zip
// @Description Streams a zip of every file below the folder; the protective marker is left out
// @Tags Archive
// @Produce application/zip
// @Param folder query string false "Folder path (empty for the whole root)"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/archive/export [get]
func ExportArchiveHandler(archive *content.ArchiveService, registry *content.FileRegistry, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")
		folder := strings.Trim(c.Query("folder"), "/")

		// Validate before the first byte goes out; afterwards errors can only be logged.
		if _, err := registry.ListFiles(c.Request.Context(), folder); err != nil {
			handleStorageError(c, err, logger, requestID)
			return
		}

		name := "uploads"
		if folder != "" {
			name = path.Base(folder)
		}
		c.Header("Content-Type", "application/zip")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.zip\"", name))
		c.Status(http.StatusOK)

		written, err := archive.ExportZip(c.Request.Context(), folder, c.Writer)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"folder":     folder,
				"written":    written,
				"error":      err.Error(),
			}).Error("archive: export aborted")
			return
		}

		logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"folder":     folder,
			"files":      written,
		}).Info("Archive exported")
	}
}
